package runner

import (
	"bufio"
	"strings"

	"canalpro-publisher/automation"
)

// Diagnose condenses a child's log into one line by picking out the phrases
// the orchestrator writes at each milestone.
func Diagnose(log string) string {
	var (
		fatal, fields, photos, ready, done string
		login                              bool
	)

	sc := bufio.NewScanner(strings.NewReader(log))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, automation.LogFatal+" at "):
			fatal = "fatal at " + after(line, automation.LogFatal+" at ")
		case strings.Contains(line, automation.LogLoginConfirmed):
			login = true
		case strings.Contains(line, automation.LogFieldsDone+":"):
			fields = "fields " + after(line, automation.LogFieldsDone+": ")
		case strings.Contains(line, automation.LogPhotoStatus):
			photos = "photos " + firstWord(after(line, automation.LogPhotoStatus+" "))
		case strings.Contains(line, automation.LogReadiness):
			if strings.TrimSpace(after(line, automation.LogReadiness)) == "true" {
				ready = "footer ready"
			} else {
				ready = "footer not found"
			}
		case strings.Contains(line, automation.LogCompleted+" with warnings"):
			done = "completed with warnings"
		case strings.Contains(line, automation.LogCompleted):
			done = "completed"
		}
	}

	var parts []string
	if fatal != "" {
		parts = append(parts, fatal)
	}
	if login {
		parts = append(parts, "login ok")
	}
	for _, p := range []string{fields, photos, ready, done} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "no progress recognized in log"
	}
	return strings.Join(parts, "; ")
}

func after(line, marker string) string {
	i := strings.Index(line, marker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(line[i+len(marker):])
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
