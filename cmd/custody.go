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
	"os"

	"github.com/spf13/cobra"
)

// Custody is the evidencekit custody commandline subcommand.
func Custody() *cobra.Command {
	custodyCommand := &cobra.Command{
		Use:   "custody",
		Short: "Manage the chain of custody of a case",
	}
	custodyCommand.AddCommand(custodyAddCommand(), custodyShowCommand(),
		custodyVerifyCommand(), custodyReportCommand())
	return custodyCommand
}

func custodyAddCommand() *cobra.Command {
	var evidenceID string
	cmd := &cobra.Command{
		Use:   "add <case-id> <actor> <action>",
		Short: "Append a custody entry",
		Args:  cobra.ExactArgs(3), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			entry, err := manager.AppendCustody(args[0], args[1], args[2], evidenceID)
			if err != nil {
				return err
			}
			b, _ := json.Marshal(entry)
			fmt.Printf("%s\n", b)
			return nil
		},
	}
	cmd.Flags().StringVar(&evidenceID, "evidence", "", "referenced evidence item id")
	addCommonFlags(cmd)
	return cmd
}

func custodyShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <case-id>",
		Short: "Print all custody entries",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			if _, err := manager.OpenCase(args[0]); err != nil {
				return err
			}
			ledger, err := manager.Ledger(args[0])
			if err != nil {
				return err
			}
			for _, entry := range ledger.Entries() {
				b, _ := json.Marshal(entry)
				fmt.Printf("%s\n", b)
			}
			return nil
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func custodyVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <case-id>",
		Short: "Recompute the custody hash chain",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			if _, err := manager.OpenCase(args[0]); err != nil {
				return err
			}
			ledger, err := manager.Ledger(args[0])
			if err != nil {
				return err
			}
			if err := ledger.VerifyChain(); err != nil {
				return err
			}
			fmt.Printf("chain of %d entries verified\n", ledger.Len())
			return nil
		},
	}
	addCommonFlags(cmd)
	return cmd
}

func custodyReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <case-id>",
		Short: "Render a human readable custody report",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, err := setup(cmd)
			if err != nil {
				return err
			}
			defer manager.Close()

			if _, err := manager.OpenCase(args[0]); err != nil {
				return err
			}
			ledger, err := manager.Ledger(args[0])
			if err != nil {
				return err
			}
			return ledger.WriteReport(os.Stdout, args[0])
		},
	}
	addCommonFlags(cmd)
	return cmd
}
