package commands

import (
	"fmt"
	"log/slog"
	"qthlookup/lib/adif"
	"qthlookup/lib/cloudlog"
	"qthlookup/lib/hamqth"
	"strings"

	"github.com/spf13/cobra"
)

var (
	qso       adif.QSO
	qsoUpload bool
)

func init() {
	flags := adifCmd.Flags()
	flags.StringVar(&qso.Band, "band", "", "Band, e.g. 40M.")
	flags.StringVar(&qso.Mode, "mode", "", "Mode, e.g. FT8.")
	flags.StringVar(&qso.Freq, "freq", "", "Frequency in MHz.")
	flags.StringVar(&qso.QSODate, "date", "", "QSO date as YYYYMMDD.")
	flags.StringVar(&qso.TimeOn, "time-on", "", "Start time as HHMMSS.")
	flags.StringVar(&qso.TimeOff, "time-off", "", "End time as HHMMSS.")
	flags.StringVar(&qso.RSTRcvd, "rst-rcvd", "", "Report received.")
	flags.StringVar(&qso.RSTSent, "rst-sent", "", "Report sent.")
	flags.StringVar(&qso.QSLRcvd, "qsl-rcvd", "N", "QSL received.")
	flags.StringVar(&qso.QSLSent, "qsl-sent", "N", "QSL sent.")
	flags.BoolVar(&qsoUpload, "upload", false, "Upload the record to cloudlog.")
	rootCmd.AddCommand(adifCmd)
}

func newCloudlogClient(e *env) (*cloudlog.Client, error) {
	return cloudlog.NewClient(cloudlog.ClientOptions{
		BaseUrl:          e.cfg.Cloudlog.BaseUrl,
		ApiKey:           e.cfg.Cloudlog.ApiKey,
		StationProfileId: e.cfg.Cloudlog.StationProfileId,
		HttpOutput:       e.httpOutput,
	})
}

var adifCmd = &cobra.Command{
	Use:   "adif <callsign> --band <band> --mode <mode> [flags]",
	Short: "Builds an ADIF record for a QSO, filling in the station's details from hamqth.com.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := lookup(cmd.Context(), e, args[0], hamqth.LookupOptions{Profile: true})
		if err != nil {
			return err
		}

		record := qso
		record.Call = strings.ToUpper(args[0])
		record.ApplyLookup(res)
		rendered := record.String()
		fmt.Fprintln(cmd.OutOrStdout(), rendered)

		if !qsoUpload {
			return nil
		}
		client, err := newCloudlogClient(e)
		if err != nil {
			return err
		}
		err = client.UploadQSO(cmd.Context(), rendered)
		if err != nil {
			return err
		}
		slog.Info("uploaded qso to cloudlog", "call", record.Call)
		return nil
	},
}
