package server

import "github.com/fatih/color"

var methodColors = map[string]*color.Color{
	"GET":     color.New(color.FgGreen),
	"POST":    color.New(color.FgBlue),
	"PUT":     color.New(color.FgCyan),
	"DELETE":  color.New(color.FgYellow),
	"PATCH":   color.New(color.FgMagenta),
	"OPTIONS": color.New(color.FgHiBlack),
}

var statusColors = []struct {
	min   int
	color *color.Color
}{
	{500, color.New(color.FgRed, color.Bold)},
	{400, color.New(color.FgYellow)},
	{300, color.New(color.FgCyan)},
	{200, color.New(color.FgGreen)},
}

func methodColor(method string) *color.Color {
	if c, ok := methodColors[method]; ok {
		return c
	}
	return color.New(color.FgHiBlack)
}

func statusColor(status int) *color.Color {
	for _, sc := range statusColors {
		if status >= sc.min {
			return sc.color
		}
	}
	return color.New(color.Reset)
}
