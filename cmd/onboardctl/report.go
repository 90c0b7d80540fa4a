package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	goOnboard "github.com/MrEthical07/goOnboard"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the security report and config lint of the engine settings",
	Long: `Print the security report and config lint of the engine settings.

Examples:
  onboardctl report
  onboardctl report --json
  onboardctl report --fail-on high`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		failOn, _ := cmd.Flags().GetString("fail-on")

		threshold, gate, err := parseSeverity(failOn)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		engineCfg := cfg.EngineConfig()
		report := goOnboard.ReportConfig(engineCfg)
		lint := engineCfg.Lint()

		out := cmd.OutOrStdout()
		if asJSON {
			err = writeReportJSON(out, report, lint)
		} else {
			err = writeReportText(out, report, lint)
		}
		if err != nil {
			return err
		}
		if gate {
			return lint.AsError(threshold)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "print JSON instead of a table")
	reportCmd.Flags().String("fail-on", "", "exit non-zero on lint findings at or above this severity (info, warn, high)")
}

func parseSeverity(s string) (goOnboard.LintSeverity, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, false, nil
	case "info":
		return goOnboard.LintInfo, true, nil
	case "warn":
		return goOnboard.LintWarn, true, nil
	case "high":
		return goOnboard.LintHigh, true, nil
	default:
		return 0, false, fmt.Errorf("unknown severity %q", s)
	}
}

type lintJSON struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func writeReportJSON(w io.Writer, report goOnboard.SecurityReport, lint goOnboard.LintResult) error {
	findings := make([]lintJSON, 0, len(lint))
	for _, l := range lint {
		findings = append(findings, lintJSON{Code: l.Code, Severity: l.Severity.String(), Message: l.Message})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"report": report,
		"lint":   findings,
	})
}

func writeReportText(w io.Writer, report goOnboard.SecurityReport, lint goOnboard.LintResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "local verification\t%t\t%s\n", report.LocalVerification, report.SigningAlgorithm)
	fmt.Fprintf(tw, "identity timeout\t%s\n", report.RequestTimeout)
	fmt.Fprintf(tw, "session ttl\t%s\n", report.SessionTTL)
	fmt.Fprintf(tw, "otc windows\t%s / %s\n", report.OTCTTL, report.OTCResendCooldown)
	fmt.Fprintf(tw, "otc retention\t%s\n", report.OTCRetention)
	fmt.Fprintf(tw, "throttles\tsignin=%t otc=%t ip=%t\n", report.SignInThrottleActive, report.OTCThrottleActive, report.IPThrottleActive)
	fmt.Fprintf(tw, "audit\tactive=%t lossy=%t\n", report.AuditActive, report.AuditLossy)
	fmt.Fprintf(tw, "metrics\t%t\n", report.MetricsActive)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(lint) == 0 {
		_, err := fmt.Fprintln(w, "\nno lint findings")
		return err
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range lint {
		fmt.Fprintf(tw, "[%s]\t%s\t%s\n", l.Severity, l.Code, l.Message)
	}
	return tw.Flush()
}
