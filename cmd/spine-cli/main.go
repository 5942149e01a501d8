package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"spinekv/libspine"
)

var (
	protocol   string
	serverAddr string
	socketPath string

	rootCmd = &cobra.Command{
		Use:   "spine-cli [command [arg ...]]",
		Short: "Send commands to a spine server",
		Long: `Send commands to a spine server. With arguments the command is run once
and its reply printed; without, commands are read line by line from stdin.`,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&protocol, "protocol", "tcp", "Protocol (tcp/unix)")
	rootCmd.Flags().StringVar(&serverAddr, "server", "localhost:6379", "Server address for tcp")
	rootCmd.Flags().StringVar(&socketPath, "socket", "/tmp/spine.sock", "Unix socket path")
}

func run(cmd *cobra.Command, args []string) error {
	addr := serverAddr
	if protocol == "unix" {
		addr = socketPath
	}
	client, err := libspine.NewClient(protocol, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if len(args) > 0 {
		return execute(ctx, client, args, cmd.OutOrStdout())
	}
	return repl(ctx, client, cmd.InOrStdin(), cmd.OutOrStdout())
}

func repl(ctx context.Context, client *redis.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "spine> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if err := execute(ctx, client, fields, out); err != nil {
			return err
		}
		if strings.EqualFold(fields[0], "quit") {
			return nil
		}
	}
}

// execute runs one command. Error replies are printed; only connection
// failures are returned.
func execute(ctx context.Context, client *redis.Client, args []string, out io.Writer) error {
	cmdArgs := make([]interface{}, len(args))
	for i, a := range args {
		cmdArgs[i] = a
	}

	res, err := client.Do(ctx, cmdArgs...).Result()
	var replyErr redis.Error
	switch {
	case errors.Is(err, redis.Nil):
		res = nil
	case errors.As(err, &replyErr):
		res = replyErr
	case err != nil:
		return err
	}
	fmt.Fprint(out, formatReply(res, ""))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
