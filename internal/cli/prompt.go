// Package cli provides the interactive fallback used when no target URL is
// given on the command line.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"h3bench/internal/config"
)

var bannerLines = []string{
	"██╗  ██╗██████╗ ██████╗ ███████╗███╗   ██╗ ██████╗██╗  ██╗",
	"██║  ██║╚════██╗██╔══██╗██╔════╝████╗  ██║██╔════╝██║  ██║",
	"███████║ █████╔╝██████╔╝█████╗  ██╔██╗ ██║██║     ███████║",
	"██╔══██║ ╚═══██╗██╔══██╗██╔══╝  ██║╚██╗██║██║     ██╔══██║",
	"██║  ██║██████╔╝██████╔╝███████╗██║ ╚████║╚██████╗██║  ██║",
	"╚═╝  ╚═╝╚═════╝ ╚═════╝ ╚══════╝╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝",
}

var gradientStops = [][3]float64{
	{79, 70, 229},   // indigo #4F46E5
	{129, 92, 246},  // violet #8B5CF6
	{217, 70, 239},  // fuchsia #D946EF
	{251, 113, 133}, // rose #FB7185
}

func lerpColor(c1, c2 [3]float64, t float64) [3]float64 {
	return [3]float64{
		c1[0] + (c2[0]-c1[0])*t,
		c1[1] + (c2[1]-c1[1])*t,
		c1[2] + (c2[2]-c1[2])*t,
	}
}

func gradientColor(t float64) [3]float64 {
	if t <= 0 {
		return gradientStops[0]
	}
	if t >= 1 {
		return gradientStops[len(gradientStops)-1]
	}

	segments := float64(len(gradientStops) - 1)
	scaled := t * segments
	idx := int(scaled)
	if idx >= len(gradientStops)-1 {
		idx = len(gradientStops) - 2
	}
	localT := scaled - float64(idx)

	return lerpColor(gradientStops[idx], gradientStops[idx+1], localT)
}

// PrintBanner renders the gradient banner to stderr.
func PrintBanner() {
	fmt.Fprintln(os.Stderr)

	height := len(bannerLines)
	width := 0
	for _, line := range bannerLines {
		if w := len([]rune(line)); w > width {
			width = w
		}
	}

	for y, line := range bannerLines {
		var result strings.Builder
		for x, r := range []rune(line) {
			diagonal := (float64(x)/float64(width))*0.5 + (float64(y)/float64(height))*0.5
			color := gradientColor(diagonal)

			style := lipgloss.NewStyle().Foreground(lipgloss.Color(
				fmt.Sprintf("#%02X%02X%02X", int(color[0]), int(color[1]), int(color[2])),
			))
			result.WriteString(style.Render(string(r)))
		}
		fmt.Fprintln(os.Stderr, result.String())
	}
	fmt.Fprintln(os.Stderr)
}

// PromptOptions fills in the target URL and request counts interactively.
func PromptOptions(cfg *config.Config) error {
	targetURL := cfg.URL
	requests := strconv.FormatUint(uint64(cfg.Requests), 10)
	warmup := strconv.FormatUint(uint64(cfg.Warmup), 10)
	insecure := cfg.Insecure

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target URL").
				Description("e.g. https://10.20.0.10/small").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("a target URL is required")
					}
					return nil
				}).
				Value(&targetURL),
			huh.NewInput().
				Title("Measured requests").
				Validate(validateCount).
				Value(&requests),
			huh.NewInput().
				Title("Warmup requests").
				Validate(validateNonNegative).
				Value(&warmup),
			huh.NewConfirm().
				Title("Skip TLS certificate verification?").
				Value(&insecure),
		),
	).WithTheme(huh.ThemeCatppuccin()).WithKeyMap(huh.NewDefaultKeyMap())

	if err := form.Run(); err != nil {
		return err
	}

	n, _ := strconv.ParseUint(strings.TrimSpace(requests), 10, 32)
	w, _ := strconv.ParseUint(strings.TrimSpace(warmup), 10, 32)

	cfg.URL = strings.TrimSpace(targetURL)
	cfg.Requests = uint32(n)
	cfg.Warmup = uint32(w)
	cfg.Insecure = insecure
	return nil
}

func validateCount(s string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return errors.New("enter a positive number")
	}
	return nil
}

func validateNonNegative(s string) error {
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32); err != nil {
		return errors.New("enter a non-negative number")
	}
	return nil
}
