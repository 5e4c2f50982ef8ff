package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/brettbedarf/deskfs/filesystem"
	"github.com/brettbedarf/deskfs/internal/util"
	"github.com/brettbedarf/deskfs/mount"
	"github.com/brettbedarf/deskfs/session"
	"github.com/brettbedarf/deskfs/shell"
	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over the file tree (reads commands from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(shell.New(a.rt.Session.NewCursor()), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runShell reads lines until EOF or exit
func runShell(sh *shell.Shell, in io.Reader, out io.Writer) error {
	for _, l := range sh.Banner() {
		fmt.Fprintln(out, l)
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, sh.Prompt())
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if trimmed := strings.TrimSpace(line); trimmed == "exit" || trimmed == "quit" {
			return nil
		}
		lines := sh.Exec(line)
		if sh.Cleared() {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
	}
}

func (a *app) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print every node as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows [][]string
			var names []string
			err := a.rt.Session.Walk(filesystem.RootID, func(n filesystem.FileNode, depth int) bool {
				names = append(names[:depth], n.Name)
				p := session.JoinNamePath(names[1:]...)
				size := "-"
				if n.IsFile() {
					size = strconv.Itoa(n.Size())
				}
				rows = append(rows, []string{
					p,
					n.Kind.String(),
					size,
					n.ModifiedAt.Local().Format(time.DateTime),
					string(n.ID),
				})
				return true
			})
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), []string{"Path", "Kind", "Size", "Modified", "ID"}, rows)
			return nil
		},
	}
}

// printTable renders rows without borders
func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(rows)
	table.Render()
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.rt.Session.NewCursor().ResolveNamePath(args[0])
			if err != nil {
				return fmt.Errorf("%s: no such file", args[0])
			}
			if !n.IsFile() {
				return fmt.Errorf("%s: is a folder", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), n.Content)
			if n.Content != "" && !strings.HasSuffix(n.Content, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or folder and everything inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur := a.rt.Session.NewCursor()
			n, err := cur.ResolveNamePath(args[0])
			if err != nil {
				return fmt.Errorf("%s: no such file or directory", args[0])
			}
			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete %s %q", n.Kind, args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			if err := cur.DeleteNode(n.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted:", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question; anything but yes declines
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		if err == promptui.ErrInterrupt {
			return false, fmt.Errorf("aborted")
		}
		return false, err
	}
	r := strings.ToLower(result)
	return r == "y" || r == "yes", nil
}

func (a *app) mountCmd() *cobra.Command {
	var fuseDebug bool
	cmd := &cobra.Command{
		Use:   "mount <dir>",
		Short: "Mount the tree read-only until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := util.GetLogger("main")
			mnt := args[0]

			opts := a.cfg.MountOptions
			opts.Debug = opts.Debug || fuseDebug
			srv := mount.New(a.rt.Session, opts, a.cfg.LogLvl)
			if err := srv.Serve(mnt); err != nil {
				return fmt.Errorf("mount %s: %w", mnt, err)
			}
			logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

			// Setup signal handling for graceful shutdown
			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer signal.Stop(signalChan)

			done := make(chan struct{})
			go func() {
				srv.Wait()
				close(done)
			}()

			select {
			case sig := <-signalChan:
				logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
				if err := srv.Unmount(); err != nil {
					logger.Error().Err(err).Msg("Failed to unmount filesystem")
					return err
				}
				<-done
			case <-done:
				logger.Info().Str("mountpoint", mnt).Msg("Filesystem unmounted externally")
			}
			logger.Info().Msg("Filesystem unmounted successfully")
			return nil
		},
	}
	cmd.Flags().BoolVar(&fuseDebug, "fuse-debug", false, "Log every FUSE request")
	return cmd
}
