package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sdk "taskdeck/sdk/go"
)

const tokenKey = "TASKDECK_TOKEN"

var errNotLoggedIn = errors.New("not logged in; run `td login`")

func newSession() *sdk.Session {
	c := sdk.New(strings.TrimRight(viper.GetString("server"), "/"))
	c.Breaker = sdk.NewBreaker("td", 30*time.Second, nil)
	c.SetToken(viper.GetString("token"))
	return sdk.NewSession(c)
}

// withUser resolves the stored token to a user before running fn.
func withUser(ctx context.Context, fn func(context.Context, *sdk.Session, sdk.User) error) error {
	s := newSession()
	u, err := s.CheckAuth(ctx)
	if errors.Is(err, sdk.ErrNotAuthenticated) || sdk.StatusCode(err) == http.StatusUnauthorized {
		return errNotLoggedIn
	}
	if err != nil {
		return err
	}
	return fn(ctx, s, *u)
}

func saveToken(token string) error {
	return setEnvValue(envFile(), tokenKey, token)
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func registerCmd() *cobra.Command {
	var in sdk.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := newSession()
			if u, err := s.CheckAuth(ctx); err == nil {
				fmt.Printf("already logged in as %s\n", u.Email)
				return nil
			}
			if in.Password == "" {
				p, err := prompt("Password: ")
				if err != nil {
					return err
				}
				in.Password = p
			}
			u, err := s.Register(ctx, in)
			if err != nil {
				return err
			}
			if err := saveToken(s.Client().Token()); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(u)
			}
			fmt.Printf("User registered successfully: %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm", "", "password confirmation")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := newSession()
			if u, err := s.CheckAuth(ctx); err == nil {
				fmt.Printf("already logged in as %s\n", u.Email)
				return nil
			}
			if password == "" {
				p, err := prompt("Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			u, err := s.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := saveToken(s.Client().Token()); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(u)
			}
			fmt.Printf("Login successful: %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession()
			if s.Client().Token() == "" {
				fmt.Println("not logged in")
				return nil
			}
			err := s.Logout(cmd.Context())
			if serr := saveToken(""); serr != nil {
				return serr
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, "warning: server logout failed:", err)
			}
			fmt.Println("Logged out successfully")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, u sdk.User) error {
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("%s <%s> (%s)\n", u.Name, u.Email, u.ID)
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage your tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var in sdk.TaskInput
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				t, err := sdk.NewTaskCache(s).Create(ctx, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("Task created successfully: %s\n", t.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	return cmd
}

func taskListCmd() *cobra.Command {
	view := sdk.DefaultView()
	var order string
	var board bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with search, filter and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch order {
			case "asc":
				view.Desc = false
			case "desc":
				view.Desc = true
			default:
				return fmt.Errorf("invalid --order %q (want asc or desc)", order)
			}
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				cache := sdk.NewTaskCache(s)
				if err := cache.Refresh(ctx); err != nil {
					return err
				}
				tasks := sdk.Apply(cache.Tasks(), view)
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				if board {
					for _, col := range sdk.Columns(tasks) {
						fmt.Printf("%s (%d)\n", col.Status, len(col.Tasks))
						renderTasks(col.Tasks)
					}
				} else {
					renderTasks(tasks)
				}
				if msg := sdk.DueToday(cache.Tasks(), time.Now()); msg != "" {
					fmt.Println(msg)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&view.Search, "search", "", "match title, description, priority or status")
	cmd.Flags().StringVar(&view.Status, "status", sdk.StatusAll, "all, todo, in-progress or done")
	cmd.Flags().StringVar(&view.SortBy, "sort", sdk.SortCreatedAt, "createdAt, dueDate, priority or title")
	cmd.Flags().StringVar(&order, "order", "desc", "asc or desc")
	cmd.Flags().BoolVar(&board, "board", false, "group by status lane")
	return cmd
}

func renderTasks(tasks []sdk.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Created"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, formatDue(t.DueDate), t.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	tw.Render()
}

func formatDue(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Local().Format("2006-01-02")
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				t, err := s.Client().GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", t.ID},
					{"Title", t.Title},
					{"Description", t.Description},
					{"Status", t.Status},
					{"Priority", t.Priority},
					{"Due", formatDue(t.DueDate)},
					{"Created", t.CreatedAt.Local().Format(time.RFC3339)},
					{"Updated", t.UpdatedAt.Local().Format(time.RFC3339)},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, priority, due string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change title, description, status, priority or due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update := sdk.TaskUpdate{}
			flags := cmd.Flags()
			if flags.Changed("title") {
				update["title"] = title
			}
			if flags.Changed("description") {
				update["description"] = description
			}
			if flags.Changed("status") {
				update["status"] = status
			}
			if flags.Changed("priority") {
				update["priority"] = priority
			}
			if flags.Changed("due") {
				update["dueDate"] = due
			}
			if clearDue {
				update["dueDate"] = nil
			}
			if len(update) == 0 {
				return errors.New("nothing to update")
			}
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				t, err := sdk.NewTaskCache(s).Update(ctx, args[0], update)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("Task updated successfully: %s [%s]\n", t.Title, t.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "todo, in-progress or done")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				if err := sdk.NewTaskCache(s).Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("Task deleted successfully")
				return nil
			})
		},
	}
}

func notifyCmd() *cobra.Command {
	n := &cobra.Command{Use: "notify", Short: "Read and manage notifications"}
	n.AddCommand(notifyListCmd())
	n.AddCommand(notifyWatchCmd())
	n.AddCommand(notifyAddCmd())
	n.AddCommand(notifyReadCmd())
	n.AddCommand(notifyReadAllCmd())
	n.AddCommand(notifyDeleteCmd())
	n.AddCommand(notifyDueCmd())
	return n
}

func renderNotifications(snap sdk.Snapshot) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Type", "Title", "Message", "Read", "Created"})
	for _, n := range snap.Notifications {
		tw.AppendRow(table.Row{n.ID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	tw.AppendFooter(table.Row{"", "", "", "unread", snap.Unread, ""})
	tw.Render()
}

func notifyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				p := sdk.NewPoller(s, 0)
				if err := p.Refresh(ctx); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p.Snapshot())
				}
				renderNotifications(p.Snapshot())
				return nil
			})
		},
	}
}

func notifyWatchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				p := sdk.NewPoller(s, interval)
				seen := map[string]struct{}{}
				p.OnChange = func(snap sdk.Snapshot) {
					for i := len(snap.Notifications) - 1; i >= 0; i-- {
						n := snap.Notifications[i]
						if _, ok := seen[n.ID]; ok {
							continue
						}
						seen[n.ID] = struct{}{}
						if viper.GetBool("json") {
							_ = printJSON(n)
							continue
						}
						fmt.Printf("[%s] %s: %s\n", n.CreatedAt.Local().Format("15:04"), n.Title, n.Message)
					}
				}
				p.Start(ctx)
				<-ctx.Done()
				p.Stop()
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", sdk.DefaultPollInterval, "poll interval")
	return cmd
}

func notifyAddCmd() *cobra.Command {
	var in sdk.NotificationInput
	var points int
	cmd := &cobra.Command{
		Use:   "add <title> <message>",
		Short: "Record a notification for yourself",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title, in.Message = args[0], args[1]
			if cmd.Flags().Changed("points") {
				in.Points = &points
			}
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, u sdk.User) error {
				in.UserID = u.ID
				n, err := s.Client().CreateNotification(ctx, in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(n)
				}
				fmt.Printf("Notification created: %s\n", n.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Type, "type", "reminder", "notification type")
	cmd.Flags().StringVar(&in.TaskID, "task", "", "related task id")
	cmd.Flags().IntVar(&points, "points", 0, "points awarded")
	return cmd
}

func notifyReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				p := sdk.NewPoller(s, 0)
				if err := p.MarkRead(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("marked read (%d unread)\n", p.Unread())
				return nil
			})
		},
	}
}

func notifyReadAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				if err := sdk.NewPoller(s, 0).MarkAllRead(ctx); err != nil {
					return err
				}
				fmt.Println("All notifications marked as read")
				return nil
			})
		},
	}
}

func notifyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				if err := sdk.NewPoller(s, 0).Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("Notification deleted")
				return nil
			})
		},
	}
}

func notifyDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "Show the reminder for tasks due today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, s *sdk.Session, _ sdk.User) error {
				cache := sdk.NewTaskCache(s)
				if err := cache.Refresh(ctx); err != nil {
					return err
				}
				msg := sdk.DueToday(cache.Tasks(), time.Now())
				if viper.GetBool("json") {
					return printJSON(map[string]any{"reminder": msg})
				}
				if msg == "" {
					msg = "nothing due today"
				}
				fmt.Println(msg)
				return nil
			})
		},
	}
}
