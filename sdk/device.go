package sdk

import "strings"

// Классы устройств
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Планшетные сигнатуры проверяются первыми: почти каждый планшетный
// user-agent содержит и мобильные маркеры
var tabletMarkers = []string{"ipad", "tablet", "kindle", "silk", "playbook"}

var mobileMarkers = []string{"mobile", "iphone", "ipod", "android", "blackberry", "opera mini", "windows phone"}

// DeviceClassOf классифицирует user-agent по упорядоченному списку сигнатур
func DeviceClassOf(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, marker := range tabletMarkers {
		if strings.Contains(ua, marker) {
			return DeviceTablet
		}
	}
	for _, marker := range mobileMarkers {
		if strings.Contains(ua, marker) {
			return DeviceMobile
		}
	}
	return DeviceDesktop
}
