// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/evidencekit/verify"
)

// Case is the evidencekit case commandline subcommand.
func Case() *cobra.Command {
	caseCommand := &cobra.Command{
		Use:   "case",
		Short: "Manage cases",
	}
	caseCommand.AddCommand(caseCreateCommand(), caseListCommand(), caseShowCommand(), caseVerifyCommand())
	return caseCommand
}

func caseListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			cases, err := manager.Cases()
			if err != nil {
				return err
			}
			for _, c := range cases {
				b, _ := json.Marshal(c)
				fmt.Printf("%s\n", b)
			}
			return nil
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func caseCreateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <case-id> <investigator>",
		Short: "Create a case",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			c, err := manager.CreateCase(args[0], args[1], description)
			if err != nil {
				return err
			}
			b, _ := json.Marshal(c)
			fmt.Printf("%s\n", b)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "case description")
	addCommonFlags(cmd)
	return cmd
}

func caseShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case and its evidence items",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			c, err := manager.OpenCase(args[0])
			if err != nil {
				return err
			}
			items, err := manager.Items(args[0])
			if err != nil {
				return err
			}
			b, _ := json.MarshalIndent(map[string]interface{}{"case": c, "evidence": items}, "", "  ")
			fmt.Printf("%s\n", b)
			return nil
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func caseVerifyCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "verify <case-id>",
		Short: "Verify every evidence item and the custody chain of a case",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			if actor == "" {
				actor = cfg.Actor
			}
			verifier := &verify.CaseVerifier{Manager: manager, Actor: actor}
			report, err := verifier.Sweep(args[0])
			if err != nil {
				return err
			}
			b, _ := json.MarshalIndent(report, "", "  ")
			fmt.Printf("%s\n", b)
			if !report.Passed {
				return verify.ErrMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "person running the verification")
	addCommonFlags(cmd)
	return cmd
}
