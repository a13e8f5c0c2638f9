package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rgehrsitz/lrcm/internal/domain"
	"github.com/shopspring/decimal"
)

// ConsoleFormatter renders a human-readable report for a terminal
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(r Report) ([]byte, error) {
	var buf bytes.Buffer
	switch {
	case r.Measurement != nil:
		writeMeasurement(&buf, r.Measurement)
	case r.Incurred != nil:
		writeIncurred(&buf, r.Incurred)
	case r.Batch != nil:
		writeBatch(&buf, r)
	}
	return buf.Bytes(), nil
}

func writeMeasurement(buf *bytes.Buffer, res *domain.MeasurementResult) {
	fmt.Fprintln(buf, titleStyle.Render(fmt.Sprintf("LRC MEASUREMENT %s @ %s", res.Contract, res.TargetMonth)))
	field(buf, "Variant", string(res.Variant))
	field(buf, "Start month", res.StartMonth)
	field(buf, "Run", res.RunID)

	fmt.Fprintln(buf, sectionStyle.Render("MONTHLY ROLL-FORWARD"))
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, headerStyle.Render("Month")+"\tDays\tRatio\tOpening\tNet CF\tInterest\tRevenue\tAmortization\tClosing\t")
	for _, m := range res.Months {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			m.Month, m.ServedDays, FormatPercentage(m.Ratio),
			FormatAmount(m.OpeningBalance), FormatAmount(m.NetCashFlow), FormatAmount(m.Interest),
			FormatAmount(m.Revenue), FormatAmount(m.Amortization), FormatAmount(m.ClosingBalance))
	}
	tw.Flush()

	lt := res.LossTest
	fmt.Fprintln(buf, sectionStyle.Render("LOSS TEST"))
	if lt.FromUnderlying {
		field(buf, "Underlying loss", FormatAmount(lt.UnderlyingLoss))
	} else {
		field(buf, "Assumption month", lt.AssumptionMonth)
		field(buf, "Remaining months", fmt.Sprintf("%d", lt.RemainingMonths))
		field(buf, "Unexpired premium", FormatAmount(lt.UnexpiredPremium))
		field(buf, "PV claims", FormatAmount(lt.PVClaims))
		field(buf, "PV maintenance", FormatAmount(lt.PVMaintenance))
		field(buf, "Risk adjustment", FormatAmount(lt.RiskAdjustment))
		field(buf, "Future cash flow", FormatAmount(lt.FutureCashFlow))
	}

	fmt.Fprintln(buf, sectionStyle.Render("RESULT"))
	field(buf, "Closing balance", FormatAmount(res.Closing))
	loss := FormatAmount(res.LossAmount)
	if res.LossAmount.GreaterThan(decimal.Zero) {
		loss = lossStyle.Render(loss)
	}
	field(buf, "Loss component", loss)
	field(buf, "LRC", FormatAmount(res.LRCDebt))

	writeDiagnostics(buf, res.Diagnostics)
}

func writeIncurred(buf *bytes.Buffer, res *domain.IncurredResult) {
	fmt.Fprintln(buf, titleStyle.Render(fmt.Sprintf("INCURRED CLAIMS @ %s", res.Month)))
	field(buf, "Run", res.RunID)
	field(buf, "Cohorts", fmt.Sprintf("%d", len(res.Cohorts)))

	fmt.Fprintln(buf, sectionStyle.Render("COHORTS"))
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, headerStyle.Render("Accident")+"\tClass\tAge\tCurrent PV\tAccident PV\tAccreted\tPaid\tService\tFinancing\tOCI\t")
	for _, c := range res.Cohorts {
		accident := c.Key.AccidentMonth
		if c.Settled {
			accident += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			accident, c.Key.ClassCode, c.Age,
			FormatAmount(c.Values.Current), FormatAmount(c.Values.Accident), FormatAmount(c.Values.Accreted),
			FormatAmount(c.Movements.PaidClaim), FormatAmount(c.Movements.ServiceCost),
			FormatAmount(c.Movements.Financing), FormatAmount(c.Movements.OCI))
	}
	tw.Flush()

	fmt.Fprintln(buf, sectionStyle.Render("TOTAL MOVEMENTS"))
	field(buf, "Paid claims", FormatAmount(res.Totals.PaidClaim))
	field(buf, "Service cost", FormatAmount(res.Totals.ServiceCost))
	field(buf, "Financing", FormatAmount(res.Totals.Financing))
	field(buf, "OCI", FormatAmount(res.Totals.OCI))

	writeDiagnostics(buf, res.Diagnostics)
}

func writeBatch(buf *bytes.Buffer, r Report) {
	b := r.Batch
	fmt.Fprintln(buf, titleStyle.Render(fmt.Sprintf("BATCH %s", b.RunID)))
	field(buf, "Succeeded", fmt.Sprintf("%d", b.Succeeded))
	field(buf, "Failed", fmt.Sprintf("%d", b.Failed))
	field(buf, "Elapsed", b.Elapsed.String())
	fmt.Fprintln(buf)

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, headerStyle.Render("Contract")+"\tMonth\tClosing\tLoss\tLRC\tNotes\t")
	for _, item := range b.Items {
		if item.Result == nil {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t%s\t\n", item.Job.Key, item.Job.TargetMonth, warnStyle.Render(item.Error))
			continue
		}
		res := item.Result
		notes := ""
		if n := len(res.Diagnostics); n > 0 {
			notes = fmt.Sprintf("%d diagnostic(s)", n)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", item.Job.Key, item.Job.TargetMonth,
			FormatAmount(res.Closing), FormatAmount(res.LossAmount), FormatAmount(res.LRCDebt), notes)
	}
	tw.Flush()
}

func writeDiagnostics(buf *bytes.Buffer, ds domain.Diagnostics) {
	if len(ds) == 0 {
		return
	}
	fmt.Fprintln(buf, sectionStyle.Render(fmt.Sprintf("DIAGNOSTICS (%d)", len(ds))))
	for _, d := range ds {
		fmt.Fprintln(buf, warnStyle.Render("• "+d.String()))
	}
}

func field(buf *bytes.Buffer, label, value string) {
	fmt.Fprintln(buf, labelStyle.Render(label+":")+" "+strings.TrimSpace(value))
}
