package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/cdsensor/core/platform"
	"github.com/kilianp07/cdsensor/core/sensor"
)

// Header lists the columns written by WriteCSV and Rows.
var Header = []string{"unique_id", "vin", "service", "attribute", "state", "unit", "available"}

// Rows flattens snapshots into string records in Header order.
func Rows(snaps []platform.Snapshot) [][]string {
	out := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, []string{
			s.UniqueID,
			s.Device.VIN,
			string(s.Descriptor.Service),
			s.Descriptor.Key(),
			sensor.FormatState(s.State),
			s.Unit,
			strconv.FormatBool(s.Available),
		})
	}
	return out
}

// WriteJSON writes the snapshots to w as an indented JSON array.
func WriteJSON(w io.Writer, snaps []platform.Snapshot) error {
	if snaps == nil {
		snaps = []platform.Snapshot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snaps)
}

// WriteCSV writes the snapshots to w in CSV format with a header line.
func WriteCSV(w io.Writer, snaps []platform.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(snaps)); err != nil {
		return err
	}
	return cw.Error()
}
