// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blinklabs-io/certledger/address"
	"github.com/blinklabs-io/certledger/contract"
	"github.com/blinklabs-io/certledger/event"
	"github.com/blinklabs-io/certledger/internal/node"
	"github.com/spf13/cobra"
)

// withNode opens the ledger without listeners for a single operation
func withNode(
	cmd *cobra.Command,
	fn func(ctx context.Context, n *node.Node) error,
) (err error) {
	cfg, err := configFromCommand(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	n, err := node.New(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer func() {
		//nolint:contextcheck
		err = errors.Join(err, n.Stop(context.Background()))
	}()
	return fn(ctx, n)
}

func signerEnv(n *node.Node, signer string) (contract.Env, error) {
	if strings.TrimSpace(signer) == "" {
		return contract.Env{}, errors.New("--signer is required")
	}
	_, canonical, err := address.Normalize(
		n.Contract().Api(),
		address.HumanAddr(signer),
	)
	if err != nil {
		return contract.Env{}, fmt.Errorf("signer: %w", err)
	}
	return contract.Env{
		Message: contract.MessageInfo{Signer: canonical},
	}, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func initCommand() *cobra.Command {
	var signer string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the ledger state owned by the signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(ctx context.Context, n *node.Node) error {
				env, err := signerEnv(n, signer)
				if err != nil {
					return err
				}
				resp, err := n.Contract().Init(ctx, env, contract.InitMsg{}, force)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&signer, "signer", "", "address of the ledger owner")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing ledger state")
	return cmd
}

func executeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Apply a ledger mutation",
	}
	cmd.PersistentFlags().String("signer", "", "address signing the message")
	cmd.AddCommand(registerInstituteCommand())
	cmd.AddCommand(issueCertificateCommand())
	return cmd
}

func signerFlag(cmd *cobra.Command) string {
	signer, _ := cmd.Flags().GetString("signer")
	return signer
}

func registerInstituteCommand() *cobra.Command {
	var msg contract.AddInstitute
	var wallet string
	cmd := &cobra.Command{
		Use:   "register-institute",
		Short: "Register or replace an institute (owner only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg.WalletAddress = address.HumanAddr(wallet)
			return withNode(cmd, func(ctx context.Context, n *node.Node) error {
				env, err := signerEnv(n, signerFlag(cmd))
				if err != nil {
					return err
				}
				resp, err := n.Contract().Handle(
					ctx,
					env,
					contract.HandleMsg{AddInstitute: &msg},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&msg.Name, "name", "", "institute name")
	cmd.Flags().Uint64Var(&msg.Year, "year", 0, "founding year")
	cmd.Flags().StringVar(&msg.Website, "website", "", "institute website")
	cmd.Flags().StringVar(&msg.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&msg.Location, "location", "", "institute location")
	cmd.Flags().StringVar(&wallet, "wallet", "", "address the institute signs with")
	return cmd
}

type issueResult struct {
	Hash string `json:"hash"`
}

func issueCertificateCommand() *cobra.Command {
	var msg contract.StoreCertificate
	var holder string
	cmd := &cobra.Command{
		Use:   "issue-certificate",
		Short: "Issue a certificate to a holder (registered institutes only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg.Address = address.HumanAddr(holder)
			return withNode(cmd, func(ctx context.Context, n *node.Node) error {
				// The hash is only reported through the issued event
				bus := n.EventBus()
				subId, issued := bus.Subscribe(event.CertificateIssuedEventType)
				defer bus.Unsubscribe(event.CertificateIssuedEventType, subId)
				env, err := signerEnv(n, signerFlag(cmd))
				if err != nil {
					return err
				}
				_, err = n.Contract().Handle(
					ctx,
					env,
					contract.HandleMsg{StoreCertificate: &msg},
				)
				if err != nil {
					return err
				}
				select {
				case evt := <-issued:
					data, ok := evt.Data.(event.CertificateIssuedEvent)
					if !ok {
						return fmt.Errorf("unexpected event data %T", evt.Data)
					}
					return printJSON(cmd.OutOrStdout(), issueResult{Hash: data.Hash})
				default:
					return errors.New("certificate issued but no hash was reported")
				}
			})
		},
	}
	cmd.Flags().StringVar(&msg.Name, "name", "", "certificate name")
	cmd.Flags().StringVar(&msg.JoinDate, "join-date", "", "date the holder joined")
	cmd.Flags().StringVar(&msg.EndDate, "end-date", "", "date the holder finished")
	cmd.Flags().StringVar(&msg.Domain, "domain", "", "certificate domain")
	cmd.Flags().StringVar(&holder, "holder", "", "address of the certificate holder")
	return cmd
}

func queryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a read-only ledger query",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "count",
			Short: "Show the number of issued certificates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQuery(cmd, contract.QueryMsg{GetCount: &contract.GetCount{}})
			},
		},
		&cobra.Command{
			Use:   "certificate <hash>",
			Short: "Show the certificate with the given hash",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQuery(cmd, contract.QueryMsg{
					GetCertificateByHash: &contract.GetCertificateByHash{Hash: args[0]},
				})
			},
		},
		&cobra.Command{
			Use:   "user <address>",
			Short: "Show the certificates held by an address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQuery(cmd, contract.QueryMsg{
					GetUserCertificates: &contract.GetUserCertificates{
						User: address.HumanAddr(args[0]),
					},
				})
			},
		},
	)
	return cmd
}

func runQuery(cmd *cobra.Command, msg contract.QueryMsg) error {
	return withNode(cmd, func(ctx context.Context, n *node.Node) error {
		data, err := n.Contract().Query(ctx, msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	})
}
