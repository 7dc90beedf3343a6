package runner

import (
	"path/filepath"
	"strings"
)

// NextWorkingDir infers the working directory after a successful `cd` or
// `chdir` command by interpreting the argument textually. It never touches
// the filesystem; callers that need certainty should stat the result.
// The second return value reports whether the command was a directory
// change at all.
func NextWorkingDir(prev, command string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) < 2 {
		return prev, false
	}
	verb := strings.ToLower(fields[0])
	if verb != "cd" && verb != "chdir" {
		return prev, false
	}

	arg := strings.Join(fields[1:], " ")
	arg = strings.Trim(arg, `"'`)
	if arg == "" {
		return prev, false
	}

	switch {
	case arg == "..":
		return filepath.Dir(prev), true

	case isDriveLetter(arg):
		return strings.ToUpper(arg) + `\`, true

	case !strings.ContainsAny(arg, `/\`):
		return filepath.Join(prev, arg), true

	case filepath.IsAbs(arg) || hasDrivePrefix(arg):
		return filepath.Clean(arg), true

	default:
		// Relative path with separators: resolve against the previous cwd.
		return filepath.Join(prev, arg), true
	}
}

// isDriveLetter reports whether arg is a bare Windows drive like "C:".
func isDriveLetter(arg string) bool {
	if len(arg) != 2 || arg[1] != ':' {
		return false
	}
	c := arg[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// hasDrivePrefix reports whether arg starts with a Windows drive prefix
// like "C:\tools".
func hasDrivePrefix(arg string) bool {
	return len(arg) > 2 && isDriveLetter(arg[:2]) && (arg[2] == '\\' || arg[2] == '/')
}
