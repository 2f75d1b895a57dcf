package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"datasanitizer/internal/config"
	"datasanitizer/internal/reporting"
	"datasanitizer/internal/system"
)

func newVolumesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "Показать тома хоста",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			volumes, err := newApp(nil).EnumerateVolumes(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(volumes)
			}
			fmt.Println(volumesTable(volumes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Вывод в JSON")
	return cmd
}

func volumesTable(volumes []system.Volume) string {
	rows := make([][]string, 0, len(volumes))
	for _, v := range volumes {
		flags := make([]string, 0, 3)
		if v.IsSystemVolume {
			flags = append(flags, "system")
		}
		if v.Removable {
			flags = append(flags, "removable")
		}
		if v.ReadOnly {
			flags = append(flags, "ro")
		}
		name := v.Identifier
		if v.Kind == system.KindPartition && v.Parent != "" {
			name = "  " + name
		}
		rows = append(rows, []string{
			name,
			string(v.Kind),
			humanize.IBytes(v.CapacityBytes),
			v.Filesystem,
			v.Label,
			v.SerialNumber,
			strings.Join(v.MountPoints, ","),
			strings.Join(flags, ","),
		})
	}
	return renderTable(
		[]string{"Volume", "Kind", "Size", "FS", "Label", "Serial", "Mounts", "Flags"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

func newClassifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <volume>",
		Short: "Проверить, можно ли перезаписывать том",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			verdict, err := newApp(nil).ClassifyVolume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			payload := reporting.FromVerdict(verdict)
			if asJSON {
				if err := printJSON(payload); err != nil {
					return err
				}
			} else {
				fmt.Print(reporting.Text(payload))
			}
			if !verdict.IsSafe() {
				return &exitStatus{code: EXIT_WARNING, err: verdict.Err()}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Вывод в JSON")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "Показать профили проходов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, name := range config.ProfileNames() {
				patterns, err := config.ProfilePatterns(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, fmt.Sprint(len(patterns)), strings.Join(patterns, " → ")})
			}
			fmt.Println(renderTable([]string{"Profile", "Passes", "Patterns"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func newReportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "Показать сохранённые отчёты",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(); err != nil {
				return err
			}
			reports, err := newApp(nil).ListReports()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				rows = append(rows, []string{r.Name, humanize.Bytes(uint64(r.Size)), humanize.Time(r.ModifiedAt)})
			}
			fmt.Println(renderTable([]string{"Report", "Size", "Modified"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft}))
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return nil
}
