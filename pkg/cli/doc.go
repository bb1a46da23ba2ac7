/*
Package cli provides command-line helpers for the gl-tls-worker command.

Output Formatting:

Commands print either text or JSON:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, result)

Reports:

Offline checks collect one line per step:

	var report cli.Report
	report.Add("configuration parsed", err)
	fmt.Println(report.String()) // ✓ configuration parsed

Signals and Exit Codes:

	signals, stop := cli.NotifyWorkerSignals()
	defer stop()
	...
	os.Exit(cli.ExitCode(err))
*/
package cli
