package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"teamsync/api/internal/notify"
	"teamsync/api/internal/syncer"
	"teamsync/api/internal/workspace"
)

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.coord.Start(ctx); err != nil {
		return err
	}
	defer s.coord.Stop()

	out := cmd.OutOrStdout()
	unsubscribe := s.coord.Store().Subscribe(func(snapshot workspace.Snapshot) {
		fmt.Fprintf(out, "%s  workspace at %d, %d unread\n",
			time.Now().Format(time.TimeOnly), snapshot.LastUpdated, s.coord.UnreadCount(snapshot.CurrentUserID))
	})
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		server := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info().Str("addr", metricsAddr).Msg("serving sync metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		last := s.coord.Status()
		printStatus(out, last)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				status := s.coord.Status()
				if status.Online != last.Online {
					printStatus(out, status)
				}
				last = status
			}
		}
	})
	return g.Wait()
}

func runView(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	view := s.coord.CurrentView()
	if viewAs != "" {
		view = s.coord.View(viewAs)
	}
	return writeJSON(cmd.OutOrStdout(), view)
}

func runLogin(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	snapshot, err := s.coord.Login(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	user, _ := snapshot.User(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", user.DisplayName(), user.ID)
	printStatus(cmd.OutOrStdout(), s.coord.Status())
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.coord.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runNotifications(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	view := s.coord.CurrentView()
	if viewAs != "" {
		view = s.coord.View(viewAs)
	}
	return printNotifications(cmd.OutOrStdout(), view.Notifications)
}

func runMarkRead(cmd *cobra.Command, args []string) error {
	if markAll == (len(args) == 1) {
		return errors.New("pass either a notification id or --all")
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	if markAll {
		err = s.coord.MarkAllNotificationsRead(cmd.Context())
	} else {
		err = s.coord.MarkNotificationRead(cmd.Context(), args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", notify.UnreadCount(s.coord.CurrentView().Notifications))
	return nil
}

func printStatus(w io.Writer, status syncer.Status) {
	state := "offline"
	if status.Online {
		state = "online"
	}
	synced := "never"
	if !status.LastSynced.IsZero() {
		synced = status.LastSynced.Format(time.DateTime)
	}
	fmt.Fprintf(w, "%s, last synced %s\n", state, synced)
}

func printNotifications(w io.Writer, items []workspace.Notification) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no notifications")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tWHEN\tTYPE\tTITLE\tDETAIL")
	for _, item := range items {
		marker := "*"
		if item.Read {
			marker = " "
		}
		when := time.UnixMilli(item.Timestamp).Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", marker, item.ID, when, item.Type, item.Title, item.Subtitle)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
