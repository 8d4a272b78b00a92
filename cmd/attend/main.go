package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pbaille/attend/internal/api"
	"github.com/pbaille/attend/internal/config"
	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/fetcher"
	"github.com/pbaille/attend/internal/store"
	"github.com/pbaille/attend/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	dbPath string
	assume bool
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:          "attend",
		Short:        "Personal class attendance tracker",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.DBPath, "database path")
	rootCmd.PersistentFlags().BoolVarP(&assume, "yes", "y", false, "answer yes to confirmation prompts")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(timetableCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(markCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(importsCmd())
	rootCmd.AddCommand(serveCmd(cfg.Addr))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

// withTracker opens the store and tracker for the duration of fn
func withTracker(fn func(t *tracker.Tracker) error) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := tracker.Open(s)
	if err != nil {
		return err
	}
	return fn(t)
}

// confirm asks a yes/no question on stdin; --yes skips it
func confirm(prompt string) bool {
	if assume {
		return true
	}
	fmt.Printf("%s [y/N] ", prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func parseDay(s string) (domain.Day, error) {
	d, ok := domain.LookupDay(s)
	if !ok {
		return "", fmt.Errorf("unknown day: %s", s)
	}
	return d, nil
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file|url]",
		Short: "Replace the timetable with a spreadsheet (xlsx, xls, csv or html)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				r    io.Reader
				name string
			)

			if fetcher.IsURL(args[0]) {
				fmt.Print("Downloading... ")
				d, err := fetcher.Fetch(args[0])
				if err != nil {
					fmt.Println("failed")
					return err
				}
				fmt.Println("done")
				r, name = bytes.NewReader(d.Data), d.Filename
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r, name = f, filepath.Base(args[0])
			}

			return withTracker(func(t *tracker.Tracker) error {
				if len(t.Classes()) > 0 && !confirm("Importing replaces the current timetable. Continue?") {
					fmt.Println("Import cancelled.")
					return nil
				}

				rec, err := t.ImportFile(r, name)
				if err != nil {
					return fmt.Errorf("import %s: %w", name, err)
				}

				fmt.Printf("Imported %d classes from %s\n", rec.Entries, rec.Source)
				return nil
			})
		},
	}
}

func addCmd() *cobra.Command {
	var m tracker.ManualClass
	var day string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a class by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			if day != "" {
				d, err := parseDay(day)
				if err != nil {
					return err
				}
				m.Day = d
			}

			return withTracker(func(t *tracker.Tracker) error {
				e, err := t.AddClass(m, func(existing domain.ClassEntry) bool {
					return confirm(fmt.Sprintf("A class already exists: %s. Overwrite it?", existing.Code))
				})
				if err != nil {
					return err
				}
				fmt.Printf("Class %q added: %s %s\n", e.Code, e.Day, e.Time)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&m.Code, "code", "c", "", "subject code (required)")
	cmd.Flags().StringVarP(&m.Name, "name", "n", "", "subject name")
	cmd.Flags().StringVarP(&day, "day", "d", "", "day of the week (required)")
	cmd.Flags().StringVar(&m.Start, "start", "", "start time, HH:MM (required)")
	cmd.Flags().StringVar(&m.End, "end", "", "end time, HH:MM (required)")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [day] [time]",
		Short: "Remove one class from the timetable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDay(args[0])
			if err != nil {
				return err
			}
			key := domain.ClassKey{Day: d, Time: args[1]}

			return withTracker(func(t *tracker.Tracker) error {
				removed, err := t.RemoveClass(key)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Printf("No class at %s.\n", key)
					return nil
				}
				fmt.Printf("Removed %s.\n", key)
				return nil
			})
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every class from the timetable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm("Are you sure you want to clear all timetable data? This action cannot be undone.") {
				return nil
			}
			return withTracker(func(t *tracker.Tracker) error {
				if err := t.ClearTimetable(); err != nil {
					return err
				}
				fmt.Println("Timetable cleared.")
				return nil
			})
		},
	}
}

func timetableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timetable",
		Short: "Show the weekly timetable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				rows := t.Grid()
				if len(rows) == 0 {
					fmt.Println("No timetable data. Use 'attend import' or 'attend add'.")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprint(w, "Time")
				for _, d := range domain.Days {
					fmt.Fprintf(w, "\t%s", d)
				}
				fmt.Fprintln(w)

				for _, row := range rows {
					fmt.Fprint(w, row.Time)
					for _, d := range domain.Days {
						fmt.Fprintf(w, "\t%s", row.Cells[d].Code)
					}
					fmt.Fprintln(w)
				}
				return w.Flush()
			})
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the distinct time slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				for _, slot := range t.TimeSlots() {
					fmt.Println(slot)
				}
				return nil
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the classes of a date and their attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				slots, err := t.Schedule(date)
				if err != nil {
					return err
				}
				d, _ := domain.ParseDate(date)
				if len(slots) == 0 {
					fmt.Printf("No classes scheduled for %s.\n", domain.DayOf(d))
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, s := range slots {
					status := "-"
					if s.Marked() {
						status = string(s.Status)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Class.Time, s.Class.Code, truncate(s.Class.Name, 40), status)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format(domain.DateLayout), "date, YYYY-MM-DD")
	return cmd
}

func markCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "mark [day] [time] [present|absent]",
		Short: "Record attendance for a class",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDay(args[0])
			if err != nil {
				return err
			}
			status, err := domain.ParseStatus(args[2])
			if err != nil {
				return err
			}
			key := domain.ClassKey{Day: d, Time: args[1]}

			return withTracker(func(t *tracker.Tracker) error {
				e, err := t.Class(key)
				if err != nil {
					return err
				}
				if _, err := t.Mark(key, date, status); err != nil {
					return err
				}
				fmt.Printf("%s on %s: %s\n", e.Code, date, status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", time.Now().Format(domain.DateLayout), "date, YYYY-MM-DD")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show overall and per-subject attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				r := t.Stats()
				target := t.Target()

				fmt.Printf("Attendance:       %s (target %d%%)\n", r.Overall.Display(), target)
				fmt.Printf("Total classes:    %d\n", r.Overall.Total)
				fmt.Printf("Classes attended: %d\n", r.Overall.Present)
				fmt.Printf("Classes missed:   %d\n", r.Overall.Absent)

				if len(r.Subjects) == 0 {
					fmt.Println("\nNo attendance data recorded yet.")
					return nil
				}

				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, s := range r.Subjects {
					flag := ""
					if s.BelowTarget(target) {
						flag = "below target"
					}
					fmt.Fprintf(w, "%s\t%s%%\t%d / %d classes\t%s\n", s.Code, s.Percentage, s.Present, s.Total, flag)
				}
				return w.Flush()
			})
		},
	}
}

func targetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target [percent]",
		Short: "Show or set the attendance target",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				if len(args) == 0 {
					fmt.Printf("%d%%\n", t.Target())
					return nil
				}

				n, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
				if err != nil {
					return fmt.Errorf("target must be an integer: %s", args[0])
				}
				if err := t.SetTarget(n); err != nil {
					return err
				}
				fmt.Printf("Target set to %d%%\n", n)
				return nil
			})
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all timetable and attendance data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm("DANGER: This will permanently delete ALL timetable and attendance data. Are you sure?") {
				return nil
			}
			return withTracker(func(t *tracker.Tracker) error {
				if err := t.Reset(); err != nil {
					return err
				}
				fmt.Println("All data deleted.")
				return nil
			})
		},
	}
}

func importsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List recent timetable imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(t *tracker.Tracker) error {
				records, err := t.Imports(limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No imports yet.")
					return nil
				}
				for _, r := range records {
					fmt.Printf("%s  %s  %3d classes  %s\n", r.ID[:8], r.CreatedAt.Format("2006-01-02 15:04"), r.Entries, truncate(r.Source, 50))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of imports to show")
	return cmd
}

// truncate shortens s to at most max characters for display
func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func serveCmd(defaultAddr string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local JSON API for a dashboard frontend",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			t, err := tracker.Open(s)
			if err != nil {
				return err
			}

			server := api.New(t, addr)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", defaultAddr, "server address")
	return cmd
}
