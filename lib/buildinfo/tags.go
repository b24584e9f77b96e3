package buildinfo

import (
	"runtime/debug"
	"sort"
	"strings"
)

// GetLinkingAndTags tells how the executable was linked and returns
// space separated build tags or the string "none".
func GetLinkingAndTags() (linking, tagString string) {
	linking = "static"
	var tagList []string
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "CGO_ENABLED":
				if setting.Value == "1" {
					linking = "dynamic"
				}
			case "-tags":
				tagList = append(tagList, strings.Split(setting.Value, ",")...)
			}
		}
	}
	if len(tagList) == 0 {
		return linking, "none"
	}
	sort.Strings(tagList)
	return linking, strings.Join(tagList, " ")
}
