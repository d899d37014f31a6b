/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

// Command bbhttpctl is a thin manual-smoke-test and embedding example for
// package executor (SPEC_FULL.md §6). It is not part of the library's
// public contract; no library package imports it.
package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/biasedbit/bbhttp"
	"github.com/biasedbit/bbhttp/executor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type getOptions struct {
	headers     []string
	maxParallel int
	timeoutS    int
	verbose     bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bbhttpctl",
		Short: "Submit one or more HTTP/1.x requests through a bbhttp executor.",
	}
	root.AddCommand(newGetCmd())
	return root
}

func newGetCmd() *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get <url>...",
		Short: "GET one or more URLs concurrently and print their outcome.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args, opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.headers, "header", nil, "extra request header, K=V (repeatable)")
	cmd.Flags().IntVar(&opts.maxParallel, "max-parallel", 3, "maximum concurrent transfers")
	cmd.Flags().IntVar(&opts.timeoutS, "timeout", 30, "connect timeout in seconds")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "log dispatch events")
	return cmd
}

func runGet(urls []string, opts *getOptions) error {
	if opts.verbose {
		// The executor logs dispatch events at Debug level.
		logrus.SetLevel(logrus.DebugLevel)
	}
	exec := executor.New("bbhttpctl",
		executor.WithMaxParallel(opts.maxParallel),
		executor.WithVerbose(opts.verbose),
		executor.WithLogger(logrus.StandardLogger()),
	)

	var wg sync.WaitGroup
	for _, u := range urls {
		req := bbhttp.NewRequest(bbhttp.GET, u)
		req.SetConnectTimeout(time.Duration(opts.timeoutS) * time.Second)
		for _, h := range opts.headers {
			name, value, ok := strings.Cut(h, "=")
			if !ok {
				continue
			}
			req.SetHeader(name, value)
		}

		wg.Add(1)
		req.OnFinish(func(r *bbhttp.Request) {
			defer wg.Done()
			printOutcome(r)
		})

		if !exec.Submit(req) {
			wg.Done()
			fmt.Printf("%s: rejected (queue full or already cancelled)\n", u)
		}
	}

	wg.Wait()
	return nil
}

func printOutcome(r *bbhttp.Request) {
	if err := r.Err(); err != nil {
		fmt.Printf("%s: error: %v\n", r.URL(), err)
		return
	}
	resp := r.Response()
	if resp == nil {
		fmt.Printf("%s: cancelled\n", r.URL())
		return
	}
	elapsed := time.Duration(r.EndTimestamp()-r.StartTimestamp()) * time.Millisecond
	fmt.Printf("%s: %d %s, %d bytes, %s\n", r.URL(), resp.Code, resp.Message, resp.ContentSize, elapsed)
}
