//go:build windows

package config

// windowsEnvNames maps POSIX variable names used in shared config files to
// their Windows equivalents.
var windowsEnvNames = map[string]string{
	"HOSTNAME": "COMPUTERNAME",
	"USER":     "USERNAME",
	"HOME":     "USERPROFILE",
	"TMPDIR":   "TEMP",
}

func mapEnvKey(key string) string {
	if win, ok := windowsEnvNames[key]; ok {
		return win
	}
	return key
}
