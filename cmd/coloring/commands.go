/*
	Copyright 2023 Google Inc.
	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at
		https://www.apache.org/licenses/LICENSE-2.0
	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ilhamster/platecoloring/coloring"
	coloringmanager "github.com/ilhamster/platecoloring/coloring_manager"
)

func parseResolution(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid resolution '%s'", arg)
	}
	return n, nil
}

func (a *app) listCmd() *cobra.Command {
	var resolution int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered colorings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.svc.Registry()
			colorings := m.All()
			if cmd.Flags().Changed("resolution") {
				colorings = m.GetAt(resolution)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRESOLUTION\tUNITS\tFIELDS\tKIND")
			for _, d := range colorings {
				desc := d.Description()
				kind := "built-in"
				if a.svc.IsCustom(d) {
					kind = "custom"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					desc.Name, desc.NumberElements, desc.Units, strings.Join(desc.FieldNames, ","), kind)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&resolution, "resolution", "r", 0, "only list colorings at this resolution")
	return cmd
}

func (a *app) rangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range NAME RESOLUTION",
		Short: "Print a coloring's default range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseResolution(args[1])
			if err != nil {
				return err
			}
			rng, err := a.svc.Range(args[0], n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rng)
			return nil
		},
	}
}

func (a *app) preloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preload RESOLUTION",
		Short: "Load every coloring at a resolution, reporting the first failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseResolution(args[0])
			if err != nil {
				return err
			}
			return a.svc.Preload(cmd.Context(), n)
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export NAME RESOLUTION FILE_ID",
		Short: "Write a coloring's data to a VTK file under the data root",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseResolution(args[1])
			if err != nil {
				return err
			}
			return a.svc.Export(args[0], n, args[2])
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	var (
		units    string
		fields   []string
		hasNulls bool
	)
	cmd := &cobra.Command{
		Use:   "import NAME RESOLUTION FILE_ID",
		Short: "Register a custom coloring read from a file under the data root",
		Long: `import registers a custom coloring and saves the custom-coloring file.  The
file's format is inferred from its extension (.vtk, .csv, .txt, .tab, .fits).`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseResolution(args[1])
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				fields = []string{args[0]}
			}
			c, err := a.svc.Import(coloring.Description{
				Name:           args[0],
				Units:          units,
				NumberElements: n,
				FieldNames:     fields,
				HasNulls:       hasNulls,
			}, args[2])
			if err != nil {
				return err
			}
			rng, err := c.DefaultRange()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s, range %s\n", coloringmanager.KeyOf(c), rng)
			return nil
		},
	}
	cmd.Flags().StringVar(&units, "units", "", "units of the coloring's values")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "field names (default: the coloring name)")
	cmd.Flags().BoolVar(&hasNulls, "has_nulls", false, "treat the lowest value as a null sentinel")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME RESOLUTION",
		Short: "Unregister a custom coloring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseResolution(args[1])
			if err != nil {
				return err
			}
			return a.svc.RemoveCustom(args[0], n)
		},
	}
}
