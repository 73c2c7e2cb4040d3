package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/tlsprofiler/internal/audit"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case audit.StatusOK, "true":
		return colorSuccess(status)
	case audit.StatusUnreachable, audit.StatusIncomplete:
		return colorWarn(status)
	case audit.StatusNotOK, audit.StatusError, "false":
		return colorError(status)
	default:
		return status
	}
}
