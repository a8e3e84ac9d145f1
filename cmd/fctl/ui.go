package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"coinfactory/internal/game"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	ownedStyle  = cellStyle.Foreground(lipgloss.Color("10"))
	nextStyle   = cellStyle.Foreground(lipgloss.Color("11")).Bold(true)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	accent.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read when stdin is piped.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderFactory(v game.FactoryView) {
	accent.Println("Factory")
	fmt.Printf("  Balance:   %s\n", coins(v.Balance))
	fmt.Printf("  Wallet:    %s\n", coins(v.WalletBalance))
	fmt.Printf("  Next cycle %s  (range %s .. %s)\n",
		colorizeCoins(v.Forecast.Rate), signedCoins(v.Forecast.Low), signedCoins(v.Forecast.High))
	if v.Forecast.WipeRisk > 0 {
		warn.Printf("  Up to %.0f%% of a cycle's output can be wiped.\n", v.Forecast.WipeRisk*100)
	}
	fmt.Println()
	renderPipeline(v.Pipeline)
}

func renderPipeline(pipeline []game.UpgradeView) {
	if len(pipeline) == 0 {
		neutral.Println("Pipeline is empty. Run `fctl tracks` to see what you can buy.")
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("#", "Track", "Upgrade", "Lvl", "Refund", "").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, u := range pipeline {
		t.Row(strconv.Itoa(u.Position), u.Track, u.Name, strconv.Itoa(u.Level), comma(u.RefundValue), randomMark(u.Random))
	}
	fmt.Println(t.Render())
}

func renderTracks(tracks []game.TrackView) {
	for _, tr := range tracks {
		accent.Printf("%s", tr.Name)
		neutral.Printf("  %s\n", tr.Flavor)

		next := ""
		if tr.Next != nil {
			next = tr.Next.Name
		}
		rows := tr.Upgrades
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Lvl", "Upgrade", "Cost", "Refund", "", "Effect").
			StyleFunc(func(row, _ int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case row < len(rows) && rows[row].Owned:
					return ownedStyle
				case row < len(rows) && rows[row].Name == next:
					return nextStyle
				default:
					return cellStyle
				}
			})
		for _, u := range rows {
			t.Row(strconv.Itoa(u.Level), u.Name, comma(u.Cost), comma(u.RefundValue), randomMark(u.Random), truncate(u.Description, 60))
		}
		fmt.Println(t.Render())
	}
}

func renderCycle(c game.CycleResult) {
	accent.Println("Cycle complete")
	fmt.Printf("  Produced:  %s\n", colorizeCoins(c.Delta))
	fmt.Printf("  Balance:   %s\n", coins(c.Balance))
	for _, w := range c.Wipes {
		danger.Printf("  %s wiped %s (%.0f%% of output)\n", w.Kind, coins(w.Coins), w.Fraction*100)
	}
}

func renderCycles(rows []game.CycleLogRow) {
	if len(rows) == 0 {
		neutral.Println("No cycles yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("When", "Start", "End", "Delta", "Wiped").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(r.RanAt.Local().Format("Jan 02 15:04"), comma(r.Seed), comma(r.Working), signedCoins(r.Delta), comma(r.WipedCoins))
	}
	fmt.Println(t.Render())
}

func transferVerb(direction string) string {
	if direction == game.DirectionDeposit {
		return "Deposited"
	}
	return "Withdrew"
}

func randomMark(random bool) string {
	if random {
		return "?"
	}
	return ""
}

func coins(v int64) string {
	return comma(v) + "c"
}

func signedCoins(v int64) string {
	if v > 0 {
		return "+" + coins(v)
	}
	return coins(v)
}

func colorizeCoins(v int64) string {
	s := signedCoins(v)
	switch {
	case v > 0:
		return color.GreenString(s)
	case v < 0:
		return color.RedString(s)
	default:
		return s
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
