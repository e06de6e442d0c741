package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	grpchandler "github.com/TomasB/geoalloc/internal/handler/grpc"
	"github.com/TomasB/geoalloc/internal/lookup"
	"github.com/TomasB/geoalloc/internal/repl"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

func replAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, closer := setupLogger(cfg, os.Stderr)
	defer closer.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return repl.New(lookup.NewService(store), os.Stdin, os.Stdout).Run(ctx)
}

func lookupAction(ctx context.Context, cmd *cli.Command) error {
	ips := cmd.Args().Slice()
	if len(ips) == 0 {
		return errors.New("at least one IP address is required")
	}

	if remote := cmd.String("remote"); remote != "" {
		return remoteLookup(ctx, remote, ips, os.Stdout)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	_, closer := setupLogger(cfg, os.Stderr)
	defer closer.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return localLookup(ctx, lookup.NewService(store), ips, os.Stdout)
}

// localLookup renders each address the way the console does.
func localLookup(ctx context.Context, locator lookup.Locator, ips []string, out io.Writer) error {
	for _, ip := range ips {
		fmt.Fprintf(out, "%s\n", ip)
		repl.Render(out, locator.Lookup(ctx, ip))
	}
	return nil
}

// remoteLookup queries a running service and prints each response as JSON.
func remoteLookup(ctx context.Context, addr string, ips []string, out io.Writer) error {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer cc.Close()

	return printRemote(ctx, grpchandler.NewClient(cc), ips, out)
}

func printRemote(ctx context.Context, client *grpchandler.Client, ips []string, out io.Writer) error {
	for _, ip := range ips {
		resp, err := client.Lookup(ctx, ip)
		switch status.Code(err) {
		case codes.OK:
			b, err := protojson.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", ip, b)
		case codes.NotFound:
			fmt.Fprintf(out, "%s not found\n", ip)
		case codes.InvalidArgument:
			fmt.Fprintf(out, "%s invalid: %s\n", ip, status.Convert(err).Message())
		default:
			return fmt.Errorf("lookup %s: %w", ip, err)
		}
	}
	return nil
}
