package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kilianp07/cdsensor/app"
	"github.com/kilianp07/cdsensor/config"
	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/pkg/export"
)

var outputFormat string

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Sensor related commands",
}

var sensorsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the sensors of the configured vehicles with their current state",
	RunE:  runSensorsLs,
}

func init() {
	sensorsLsCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or csv")
	sensorsCmd.AddCommand(sensorsLsCmd)
	rootCmd.AddCommand(sensorsCmd)
}

func runSensorsLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	snaps, err := listSensors(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return writeSensors(cmd.OutOrStdout(), outputFormat, snaps)
}

// listSensors loads the snapshots once and refreshes every sensor without
// publishing anywhere.
func listSensors(ctx context.Context, cfg *config.Config) ([]platform.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	lsCfg := *cfg
	lsCfg.Hass.Enabled = false
	lsCfg.History.Enabled = false
	lsCfg.Metrics.Sinks = nil
	svc, err := app.New(&lsCfg)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(lsCfg.Source.MQTT.Timeout()+10)*time.Second)
	defer cancel()
	if _, err := svc.Setup(ctx); err != nil {
		return nil, err
	}
	if err := svc.Platform().Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.Platform().Snapshots(), nil
}

func writeSensors(w io.Writer, format string, snaps []platform.Snapshot) error {
	switch format {
	case "json":
		return export.WriteJSON(w, snaps)
	case "csv":
		return export.WriteCSV(w, snaps)
	case "table", "":
		table := tablewriter.NewWriter(w)
		table.SetHeader(export.Header)
		table.SetAutoWrapText(false)
		table.AppendBulk(export.Rows(snaps))
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
