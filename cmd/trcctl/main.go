// cmd/trcctl/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"trcinventory/internal/client"
	"trcinventory/internal/data"
	"trcinventory/internal/pettycash"
	"trcinventory/internal/view"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:5051", "TRC inventory server URL")
	username := flag.String("user", "", "username (prompted when empty)")
	tz := flag.String("tz", "Local", "time zone used to decide what today is")
	flag.Parse()

	loc := time.Local
	if *tz != "Local" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unknown time zone %s: %v\n", *tz, err)
			os.Exit(2)
		}
		loc = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := &console{in: bufio.NewScanner(os.Stdin), out: os.Stdout}
	c := client.New(*server, nil)

	if err := con.login(ctx, c, *username); err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Logout(context.Background())

	con.run(ctx, c, loc)
}

type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func (con *console) printf(format string, v ...interface{}) {
	fmt.Fprintf(con.out, format, v...)
}

// ask prints a prompt and returns the trimmed answer. io.EOF ends the session.
func (con *console) ask(prompt string) (string, error) {
	con.printf("%s", prompt)
	if !con.in.Scan() {
		if err := con.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(con.in.Text()), nil
}

// field asks for a new value, keeping the current one on an empty answer.
func (con *console) field(name, current string) (string, error) {
	answer, err := con.ask(fmt.Sprintf("  %s [%s]: ", name, current))
	if err != nil || answer == "" {
		return current, err
	}
	return answer, nil
}

func (con *console) decimalField(name string, current decimal.Decimal) (decimal.Decimal, error) {
	for {
		raw, err := con.field(name, current.String())
		if err != nil {
			return current, err
		}
		d, err := decimal.NewFromString(raw)
		if err == nil {
			return d, nil
		}
		con.printf("  not a number: %s\n", raw)
	}
}

func (con *console) login(ctx context.Context, c *client.Client, username string) error {
	for attempt := 0; attempt < 3; attempt++ {
		user := username
		if user == "" {
			var err error
			if user, err = con.ask("Username: "); err != nil {
				return err
			}
		}
		pass, err := con.ask("Password: ")
		if err != nil {
			return err
		}

		s, err := c.Login(ctx, user, pass)
		if err == nil {
			con.printf("Welcome %s, session valid until %s\n", s.Username, s.ExpiresAt.Local().Format("15:04 Mon"))
			return nil
		}
		con.printf("%s\n", describe(err))
		if !errors.Is(err, client.ErrUnauthenticated) && !isCredentialError(err) {
			return err
		}
	}
	return errors.New("too many attempts")
}

func (con *console) run(ctx context.Context, c *client.Client, loc *time.Location) {
	for {
		choice, err := con.ask("\n1) Dashboard  2) Ingredients  3) Inventory  4) Petty cash  5) Logout\n> ")
		if err != nil {
			return
		}
		switch choice {
		case "1":
			err = con.dashboard(ctx, c)
		case "2":
			err = con.ingredients(ctx, c)
		case "3":
			err = con.inventory(ctx, c, loc)
		case "4":
			err = con.pettyCash(ctx, c)
		case "5", "q":
			if err := c.Logout(ctx); err != nil {
				con.printf("%s\n", describe(err))
			}
			con.printf("Logged out.\n")
			return
		default:
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}
		if errors.Is(err, client.ErrUnauthenticated) {
			con.printf("Your session ended, please log in again.\n")
			return
		}
		if err != nil {
			con.printf("%s\n", describe(err))
		}
	}
}

func (con *console) dashboard(ctx context.Context, c *client.Client) error {
	v := view.NewDashboardView(ctx, c)
	defer v.Close()
	if err := v.Mount(); err != nil {
		return err
	}
	s, _ := v.Summary()
	count := func(n *int) string {
		if n == nil {
			return "unavailable"
		}
		return humanize.Comma(int64(*n))
	}
	con.printf("Snapshots:   %s\nIngredients: %s\nCapitals:    %s\n", count(s.Snapshots), count(s.Ingredients), count(s.Capitals))
	if s.LatestSnapshot != nil {
		con.printf("Latest inventory: %s\n", s.LatestSnapshot.Date)
	}
	return nil
}

func (con *console) ingredients(ctx context.Context, c *client.Client) error {
	v := view.NewIngredientsView(ctx, c)
	defer v.Close()
	if err := v.Mount(); err != nil {
		return err
	}

	for {
		items := v.Items()
		if len(items) == 0 {
			con.printf("no records found\n")
		} else {
			tw := tabwriter.NewWriter(con.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSUPPLIER\tPRICE\tDESCRIPTION")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Supplier, it.Price.StringFixed(2), it.Description)
			}
			tw.Flush()
		}

		cmd, arg, err := con.command("[a]dd  [e]dit <id>  [b]ack > ")
		if err != nil {
			return err
		}
		switch cmd {
		case "a":
			if _, err := v.AddRow(); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "e":
			if err := v.BeginEdit(arg); err != nil {
				con.printf("%s\n", describe(err))
				continue
			}
			var inputErr error
			v.Buffer(func(it *data.Ingredient) {
				it.Name, inputErr = con.field("name", it.Name)
				it.Description, inputErr = con.field("description", it.Description)
				it.Supplier, inputErr = con.field("supplier", it.Supplier)
				it.Price, inputErr = con.decimalField("price", it.Price)
			})
			if err := inputErr; err != nil {
				v.Cancel()
				return err
			}
			if err := v.Save(); err != nil {
				con.printf("Not saved: %s\n", describe(err))
			}
		case "b":
			return nil
		}
	}
}

func (con *console) inventory(ctx context.Context, c *client.Client, loc *time.Location) error {
	v := view.NewInventoryView(ctx, c, loc)
	defer v.Close()
	if err := v.Mount(); err != nil {
		return err
	}

	for {
		snaps := v.Snapshots()
		sel, selected := v.Selected()
		if !selected {
			if len(snaps) == 0 {
				con.printf("no records found\n")
			}
			for i, s := range snaps {
				con.printf("%2d) %s\n", i+1, s.Date)
			}
		} else {
			con.printf("Inventory for %s\n", sel.Date)
			lines := v.Lines()
			if len(lines) == 0 {
				con.printf("no records found\n")
			}
			tw := tabwriter.NewWriter(con.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tITEM\tBEGIN\tUSED\tEND")
			for _, l := range lines {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.ID, l.ItemName, l.BeginningStock, l.QtyUsed, l.EndingStock)
			}
			tw.Flush()
		}

		cmd, arg, err := con.command("[s]elect <n>  [n]ew day  [a]dd line  [e]dit <id>  [l]ist  [b]ack > ")
		if err != nil {
			return err
		}
		switch cmd {
		case "s":
			if arg < 1 || int(arg) > len(snaps) {
				con.printf("pick a number from the list\n")
				continue
			}
			if err := v.Select(snaps[arg-1].GroupID); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "n":
			created, err := v.CreateSnapshot()
			if err != nil {
				con.printf("%s\n", describe(err))
				continue
			}
			con.printf("Opened %s with %d lines seeded from the %s\n", created.Snapshot.Date, len(created.Lines), created.Seed)
		case "a":
			if _, err := v.AddLine(); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "e":
			if err := v.BeginEdit(arg); err != nil {
				con.printf("%s\n", describe(err))
				continue
			}
			var inputErr error
			v.Buffer(func(l *data.InventoryLine) {
				l.ItemName, inputErr = con.field("item", l.ItemName)
				l.BeginningStock, inputErr = con.decimalField("beginning", l.BeginningStock)
				l.QtyUsed, inputErr = con.decimalField("used", l.QtyUsed)
				l.EndingStock, inputErr = con.decimalField("ending", l.EndingStock)
			})
			if err := inputErr; err != nil {
				v.Cancel()
				return err
			}
			if err := v.Save(); err != nil {
				con.printf("Not saved: %s\n", describe(err))
			}
		case "l":
			v.Deselect()
			if err := v.Mount(); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "b":
			return nil
		}
	}
}

func (con *console) pettyCash(ctx context.Context, c *client.Client) error {
	v := view.NewPettyCashView(ctx, c)
	defer v.Close()
	if err := v.Mount(); err != nil {
		return err
	}

	for {
		caps := v.VisibleCapitals()
		if len(caps) == 0 {
			con.printf("no records found\n")
		}
		for i, cp := range caps {
			con.printf("%2d) %s  %-24s amount %s  balance %s\n", i+1, cp.Date, cp.Description,
				money(cp.Amount), money(cp.Balance))
		}
		if sel, ok := v.Selected(); ok {
			con.printf("\nExpenses for %s (%s), balance %s\n", sel.Description, sel.Date, money(sel.Balance))
			exps := v.Expenses()
			if len(exps) == 0 {
				con.printf("no records found\n")
			}
			for _, e := range exps {
				con.printf("  #%d %s  %-24s %s\n", e.ID, e.Date, e.Description, money(e.Amount))
			}
		}

		cmd, arg, err := con.command("[h]istory  [s]elect <n>  [c]apital  e[x]pense  [e]dit <id>  [b]ack > ")
		if err != nil {
			return err
		}
		switch cmd {
		case "h":
			v.ToggleHistory()
		case "s":
			if arg < 1 || int(arg) > len(caps) {
				con.printf("pick a number from the list\n")
				continue
			}
			if err := v.SelectCapital(caps[arg-1].GroupID); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "c":
			desc, err := con.ask("  description: ")
			if err != nil {
				return err
			}
			amount, err := con.decimalField("amount", decimal.Zero)
			if err != nil {
				return err
			}
			if _, err := v.CreateCapital(desc, amount); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "x":
			if _, ok := v.Selected(); !ok {
				con.printf("%s\n", describe(view.ErrNoCapitalSelected))
				continue
			}
			var in pettycash.ExpenseInput
			if in.Date, err = con.field("date", "today"); err != nil {
				return err
			}
			if in.Date == "today" {
				in.Date = ""
			}
			if in.Description, err = con.ask("  description: "); err != nil {
				return err
			}
			if in.Amount, err = con.decimalField("amount", decimal.Zero); err != nil {
				return err
			}
			if _, err := v.AddExpense(in); err != nil {
				con.printf("%s\n", describe(err))
			}
		case "e":
			if err := v.BeginEdit(arg); err != nil {
				con.printf("%s\n", describe(err))
				continue
			}
			var inputErr error
			v.Buffer(func(e *data.Expense) {
				e.Date, inputErr = con.field("date", e.Date)
				e.Description, inputErr = con.field("description", e.Description)
				e.Amount, inputErr = con.decimalField("amount", e.Amount)
			})
			if err := inputErr; err != nil {
				v.Cancel()
				return err
			}
			if err := v.Save(); err != nil {
				con.printf("Not saved: %s\n", describe(err))
			}
		case "b":
			return nil
		}
	}
}

// command reads "<letter> [number]".
func (con *console) command(prompt string) (string, int64, error) {
	answer, err := con.ask(prompt)
	if err != nil {
		return "", 0, err
	}
	parts := strings.Fields(answer)
	if len(parts) == 0 {
		return "", 0, nil
	}
	var n int64
	if len(parts) > 1 {
		n, _ = strconv.ParseInt(strings.TrimPrefix(parts[1], "#"), 10, 64)
	}
	return strings.ToLower(parts[0]), n, nil
}

func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}
