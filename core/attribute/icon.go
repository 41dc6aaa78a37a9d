package attribute

import (
	"fmt"
	"math"
)

const iconBattery = "mdi:battery"

// ForBatteryLevel returns the battery icon for a level in percent. A nil
// level yields the "unknown" variant.
func ForBatteryLevel(level *float64, charging bool) string {
	if level == nil {
		return iconBattery + "-unknown"
	}
	l := *level
	switch {
	case charging && l > 10:
		return fmt.Sprintf("%s-charging-%d", iconBattery, int(math.RoundToEven(l/20-0.01))*20)
	case charging:
		return iconBattery + "-outline"
	case l <= 5:
		return iconBattery + "-alert"
	case l < 95:
		return fmt.Sprintf("%s-%d", iconBattery, int(math.RoundToEven(l/10-0.01))*10)
	}
	return iconBattery
}
