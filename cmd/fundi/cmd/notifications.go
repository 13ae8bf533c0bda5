package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newNotificationsCommand(opts *rootOptions) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and mark notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}

			p, err := a.client.Notifications.List(cmd.Context(), page)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\t \tTITLE\tRECEIVED")
			for _, n := range p.Data {
				marker := "*"
				if n.IsRead() {
					marker = " "
				}
				received := ""
				if n.CreatedAt != nil {
					received = n.CreatedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, marker, n.Title, received)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if p.HasMore() {
				a.printf("Page %d of %d. Use --page %d for more.\n", p.CurrentPage, p.LastPage, p.CurrentPage+1)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page to fetch")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "unread-count",
			Short: "Print the number of unread notifications",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.requireSession(); err != nil {
					return err
				}

				count, err := a.client.Notifications.UnreadCount(cmd.Context())
				if err != nil {
					return err
				}
				a.printf("%d\n", count)
				return nil
			},
		},
		&cobra.Command{
			Use:   "read <notification-id>",
			Short: "Mark one notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.requireSession(); err != nil {
					return err
				}

				if err := a.client.Notifications.MarkAsRead(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Marked %s as read\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification as read",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := opts.newApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				if err := a.requireSession(); err != nil {
					return err
				}

				updated, err := a.client.Notifications.MarkAllAsRead(cmd.Context())
				if err != nil {
					return err
				}
				a.printf("Marked %d notifications as read\n", updated)
				return nil
			},
		},
	)
	return cmd
}
