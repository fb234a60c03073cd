// Command inspect prints the rows of one room table, read-only, from a data directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"tandem/contract"
	"tandem/domain"
	"tandem/projection"
	"tandem/repositories"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		driver     string
		sqliteDir  string
		badgerPath string
		boltPath   string
		party      string
		room       string
		tableName  string
	)
	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&driver, "driver", repositories.DriverSQLite, "storage driver: sqlite, badger or bolt")
	flagSet.StringVar(&sqliteDir, "sqlite-dir", "./data/rooms", "directory holding one sqlite file per room")
	flagSet.StringVar(&badgerPath, "badger", "./data/badger", "badger database directory")
	flagSet.StringVar(&boltPath, "bolt", "./data/tandem.bolt", "bolt database file")
	flagSet.StringVar(&party, "party", string(domain.PartyTandem), "party: chat or tandem")
	flagSet.StringVar(&room, "room", "", "room id (required)")
	flagSet.StringVarP(&tableName, "table", "t", "", "table to print: "+strings.Join(tableNames(), ", "))
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	roomID, err := domain.ParseRoomID(room)
	if err != nil {
		return err
	}
	p, err := domain.ParseParty(party)
	if err != nil {
		return err
	}
	if tableName == "" {
		tableName = defaultTable(p)
	}
	schema, ok := projection.SchemaFor(tableName)
	if !ok {
		return fmt.Errorf("unknown table %q, expected one of %s", tableName, strings.Join(tableNames(), ", "))
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	storage, err := repositories.NewStorage(repositories.Options{
		Driver:     driver,
		SQLiteDir:  sqliteDir,
		BadgerPath: badgerPath,
		BoltPath:   boltPath,
		ReadOnly:   true,
	}, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	ctx := context.Background()
	table, err := storage.Open(ctx, p, roomID)
	if err != nil {
		return err
	}
	defer table.Close()
	if err = table.EnsureTable(ctx, schema); err != nil {
		return err
	}
	rows, err := table.SelectAll(ctx, schema.Name)
	if err != nil {
		return err
	}
	render(os.Stdout, schema, rows)
	return nil
}

func render(out *os.File, schema contract.Schema, rows []contract.Row) {
	table := tablewriter.NewWriter(out)
	table.SetHeader(lo.Map(schema.Columns, func(c contract.Column, _ int) string { return c.Name }))
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, row := range rows {
		table.Append(lo.Map(schema.Columns, func(c contract.Column, _ int) string {
			return fmt.Sprint(row[c.Name])
		}))
	}
	table.Render()
	fmt.Fprintf(out, "\n%d row(s) in %s\n", len(rows), schema.Name)
}

func defaultTable(p domain.Party) string {
	if p == domain.PartyChat {
		return projection.MessagesTable
	}
	return projection.TodosTable
}

func tableNames() []string {
	names := lo.Keys(projection.Schemas())
	sort.Strings(names)
	return names
}
