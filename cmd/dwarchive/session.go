package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"dwarchive/pkg/auth"
	"dwarchive/pkg/config"
	"dwarchive/pkg/dawanda"

	"github.com/spf13/cobra"
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage remembered sessions",
	Long: `Manage the session cookies stored with --remember.

Sessions are kept in the system keychain when one is available and in an
encrypted file under ~/.config/dwarchive otherwise.`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List remembered sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		return showSessions(cmd.OutOrStdout(), mgr, siteBaseURL())
	},
}

var sessionForgetCmd = &cobra.Command{
	Use:   "forget [site]",
	Short: "Remove a remembered session",
	Long: `Remove the remembered session for a site. The site defaults to the host
of the configured base URL, e.g. de.dawanda.com.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := auth.NewManager()
		if err != nil {
			return err
		}
		site := auth.SiteKey(siteBaseURL())
		if len(args) == 1 {
			site = args[0]
		}
		return forgetSession(cmd.OutOrStdout(), mgr, site)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionForgetCmd)
}

// siteBaseURL returns the configured base URL, falling back to the default
// when the configuration cannot be loaded.
func siteBaseURL() string {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return dawanda.DefaultBaseURL
	}
	return cfg.Site.BaseURL
}

type sessionLister interface {
	List() ([]*auth.Session, error)
	Retrieve(site string) (*auth.Session, error)
}

// showSessions lists every remembered session. The keychain cannot be
// enumerated, so the configured site is also looked up directly.
func showSessions(w io.Writer, sessions sessionLister, baseURL string) error {
	list, err := sessions.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if current, err := sessions.Retrieve(auth.SiteKey(baseURL)); err == nil {
		list = mergeSession(list, current)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No remembered sessions.")
		fmt.Fprintln(w)
		auth.ShowSessionGuide(w, baseURL, dawanda.SessionCookieName)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tUSER\tSESSION\tSAVED")
	for _, s := range list {
		s = auth.SanitizeSession(s)
		username := s.Username
		if username == "" {
			username = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Site, username, s.Token, s.LastModified.Format(time.RFC3339))
	}
	return tw.Flush()
}

// mergeSession adds s to list unless its site is already there, keeping
// the list ordered by site.
func mergeSession(list []*auth.Session, s *auth.Session) []*auth.Session {
	for _, existing := range list {
		if existing.Site == s.Site {
			return list
		}
	}
	list = append(list, s)
	sort.Slice(list, func(i, j int) bool { return list[i].Site < list[j].Site })
	return list
}

type sessionDeleter interface {
	Delete(site string) error
}

func forgetSession(w io.Writer, sessions sessionDeleter, site string) error {
	if err := sessions.Delete(site); err != nil {
		return fmt.Errorf("failed to remove session for %s: %w", site, err)
	}
	fmt.Fprintf(w, "Removed session for %s\n", site)
	return nil
}
