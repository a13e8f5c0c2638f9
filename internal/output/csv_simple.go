package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rgehrsitz/lrcm/internal/domain"
)

// CSVFormatter writes one row per month, cohort or batch job
type CSVFormatter struct{}

func (c CSVFormatter) Name() string { return "csv" }

func (c CSVFormatter) Format(r Report) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	var err error
	switch {
	case r.Measurement != nil:
		err = writeMeasurementCSV(w, r.Measurement)
	case r.Incurred != nil:
		err = writeIncurredCSV(w, r.Incurred)
	case r.Batch != nil:
		err = writeBatchCSV(w, r)
	}
	if err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func writeMeasurementCSV(w *csv.Writer, res *domain.MeasurementResult) error {
	header := []string{"Month", "Counter", "ServedDays", "Ratio", "Rate", "Opening", "NetCashFlow", "AcquisitionCashFlow",
		"Interest", "Revenue", "Amortization", "Investment", "Closing"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range res.Months {
		row := []string{
			m.Month,
			strconv.Itoa(m.MonthCounter),
			strconv.Itoa(m.ServedDays),
			m.Ratio.String(),
			m.Rate.String(),
			m.OpeningBalance.String(),
			m.NetCashFlow.String(),
			m.AcquisitionCash.String(),
			m.Interest.String(),
			m.Revenue.String(),
			m.Amortization.String(),
			m.Investment.String(),
			m.ClosingBalance.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeIncurredCSV(w *csv.Writer, res *domain.IncurredResult) error {
	header := []string{"AccidentMonth", "ClassCode", "Age", "Settled", "Current", "Accident", "Accreted",
		"PaidClaim", "ServiceCost", "Financing", "OCI"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range res.Cohorts {
		row := []string{
			c.Key.AccidentMonth,
			c.Key.ClassCode,
			strconv.Itoa(c.Age),
			strconv.FormatBool(c.Settled),
			c.Values.Current.String(),
			c.Values.Accident.String(),
			c.Values.Accreted.String(),
			c.Movements.PaidClaim.String(),
			c.Movements.ServiceCost.String(),
			c.Movements.Financing.String(),
			c.Movements.OCI.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeBatchCSV(w *csv.Writer, r Report) error {
	header := []string{"PolicyNo", "EndorsementNo", "TargetMonth", "Closing", "LossAmount", "LRCDebt", "Diagnostics", "Error"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, item := range r.Batch.Items {
		row := []string{item.Job.Key.PolicyNo, item.Job.Key.EndorsementNo, item.Job.TargetMonth, "", "", "", "", item.Error}
		if res := item.Result; res != nil {
			row[3] = res.Closing.String()
			row[4] = res.LossAmount.String()
			row[5] = res.LRCDebt.String()
			row[6] = strconv.Itoa(len(res.Diagnostics))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
