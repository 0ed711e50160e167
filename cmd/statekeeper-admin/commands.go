// ABOUTME: Subcommand handlers for settings, history and scans
// ABOUTME: Output is aligned tables for humans; errors come back from the API unchanged

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/statekeeper/internal/prefs"
)

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func runSettings(ctx context.Context, args []string) error {
	sub := "get"
	if len(args) > 0 {
		sub = args[0]
	}

	c := newClient()
	switch sub {
	case "get":
		s, err := c.GetSettings(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			color.New(color.FgHiBlack).Println("No settings stored; showing defaults")
			d := prefs.DefaultSettings()
			s = &d
		}
		return printSettings(*s)

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: statekeeper-admin settings set <key=value>...")
		}
		current, err := c.GetSettings(ctx)
		if err != nil {
			return err
		}
		base := prefs.DefaultSettings()
		if current != nil {
			base = *current
		}
		updated, err := applySettings(base, args[1:])
		if err != nil {
			return err
		}
		if err := c.SaveSettings(ctx, updated); err != nil {
			return err
		}
		color.Green("✓ Settings saved")
		return nil

	case "reset":
		if err := c.SaveSettings(ctx, prefs.DefaultSettings()); err != nil {
			return err
		}
		color.Green("✓ Settings reset to defaults")
		return nil

	default:
		return fmt.Errorf("unknown settings command: %s", sub)
	}
}

func printSettings(s prefs.AccessibilitySettings) error {
	fields, err := settingsMap(s)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w := newTable()
	fmt.Fprintln(w, "SETTING\tVALUE")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%v\n", k, fields[k])
	}
	return w.Flush()
}

func settingsMap(s prefs.AccessibilitySettings) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// applySettings overlays key=value pairs onto s. Values are read as JSON
// scalars when they parse as one and as strings otherwise.
func applySettings(s prefs.AccessibilitySettings, pairs []string) (prefs.AccessibilitySettings, error) {
	fields, err := settingsMap(s)
	if err != nil {
		return s, err
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return s, fmt.Errorf("expected key=value, got %q", pair)
		}
		if _, known := fields[key]; !known {
			return s, fmt.Errorf("unknown setting: %s", key)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[key] = value
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return s, err
	}
	var out prefs.AccessibilitySettings
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return s, fmt.Errorf("invalid setting value: %w", err)
	}
	return out, nil
}

func runHistory(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	c := newClient()
	switch sub {
	case "list":
		var limit *int
		for i := 0; i < len(args); i++ {
			switch args[i] {
			case "--limit":
				if i+1 >= len(args) {
					return fmt.Errorf("--limit requires a value")
				}
				i++
				n, err := strconv.Atoi(args[i])
				if err != nil {
					return fmt.Errorf("invalid --limit: %w", err)
				}
				limit = &n
			default:
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}

		commands, err := c.GetHistory(ctx, limit)
		if err != nil {
			return err
		}
		if len(commands) == 0 {
			fmt.Println("No voice commands recorded")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "TIMESTAMP\tTRANSCRIPT\tMATCHED\tCONFIDENCE")
		for _, cmd := range commands {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n",
				cmd.Timestamp, truncate(cmd.Transcript, 40), cmd.CommandMatched, cmd.Confidence)
		}
		return w.Flush()

	case "add":
		if len(args) == 0 {
			return fmt.Errorf("usage: statekeeper-admin history add <transcript> [--matched C] [--confidence F]")
		}
		cmd := prefs.VoiceCommand{Transcript: args[0], Confidence: 1}
		rest := args[1:]
		for i := 0; i < len(rest); i++ {
			switch rest[i] {
			case "--matched":
				if i+1 >= len(rest) {
					return fmt.Errorf("--matched requires a value")
				}
				i++
				cmd.CommandMatched = rest[i]
			case "--confidence":
				if i+1 >= len(rest) {
					return fmt.Errorf("--confidence requires a value")
				}
				i++
				f, err := strconv.ParseFloat(rest[i], 64)
				if err != nil {
					return fmt.Errorf("invalid --confidence: %w", err)
				}
				cmd.Confidence = f
			default:
				return fmt.Errorf("unknown flag: %s", rest[i])
			}
		}

		saved, err := c.SaveCommand(ctx, cmd)
		if err != nil {
			return err
		}
		color.Green("✓ Recorded %s", saved.ID)
		return nil

	case "clear":
		if err := c.ClearHistory(ctx); err != nil {
			return err
		}
		color.Green("✓ History cleared")
		return nil

	default:
		return fmt.Errorf("unknown history command: %s", sub)
	}
}

func runScans(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: statekeeper-admin scans <get|add|clear>")
	}
	sub, args := args[0], args[1:]

	c := newClient()
	switch sub {
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: statekeeper-admin scans get <id>")
		}
		scan, err := c.GetScan(ctx, args[0])
		if err != nil {
			return err
		}
		if scan == nil {
			fmt.Printf("No cached scan with id %s\n", args[0])
			return nil
		}

		w := newTable()
		fmt.Fprintf(w, "ID:\t%s\n", scan.ID)
		fmt.Fprintf(w, "File:\t%s\n", scan.FilePath)
		fmt.Fprintf(w, "Cached:\t%s\n", scan.CachedAt)
		fmt.Fprintf(w, "Result:\t%s\n", truncate(scan.Result, 200))
		return w.Flush()

	case "add":
		var scan prefs.CachedScan
		for i := 0; i < len(args); i++ {
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value", args[i])
			}
			switch args[i] {
			case "--path":
				scan.FilePath = args[i+1]
			case "--id":
				scan.ID = args[i+1]
			case "--result":
				scan.Result = args[i+1]
			default:
				return fmt.Errorf("unknown flag: %s", args[i])
			}
			i++
		}
		if scan.FilePath == "" {
			return fmt.Errorf("--path is required")
		}

		saved, err := c.SaveScan(ctx, scan)
		if err != nil {
			return err
		}
		color.Green("✓ Cached %s", saved.ID)
		return nil

	case "clear":
		if err := c.ClearScans(ctx); err != nil {
			return err
		}
		color.Green("✓ Scan cache cleared")
		return nil

	default:
		return fmt.Errorf("unknown scans command: %s", sub)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
