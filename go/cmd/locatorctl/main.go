/*
Copyright 2019 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command locatorctl is a small operator tool for exercising a tablet
// locator against a live ZooKeeper-backed deployment: locate a row's
// tablet, or bin a set of ranges across tablets, and print the result.
// Mirrors vitess's own go/cmd/vtctl layout as this module's one cmd/ entry point.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samuel/go-zookeeper/zk"
	"github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vitessio/tabletlocator/go/vt/key"
	"github.com/vitessio/tabletlocator/go/vt/locator"
	"github.com/vitessio/tabletlocator/go/vt/locator/metaclient"
	"github.com/vitessio/tabletlocator/go/vt/locator/zklock"
	"github.com/vitessio/tabletlocator/go/vt/locatorconfig"
	"github.com/vitessio/tabletlocator/go/vt/log"
)

var (
	zkServers   string
	dialTimeout time.Duration
	cfg         = locatorconfig.Default()
)

func registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&zkServers, "zk_servers", "localhost:2181", "comma-separated ZooKeeper ensemble")
	fs.DurationVar(&dialTimeout, "dial_timeout", 5*time.Second, "gRPC dial timeout for metadata tablet lookups")
	cfg.RegisterFlags(fs)
}

func main() {
	registerFlags(pflag.CommandLine)
	pflag.Parse()
	log.SetVerbosity(log.Level(0))

	args := pflag.Args()
	if len(args) < 3 {
		usage()
		os.Exit(2)
	}

	conn, tr, err := bootstrap()
	if err != nil {
		log.Exitf("locatorctl: bootstrap failed: %v", err)
	}
	defer conn.Close()
	defer tr.Close()

	ctx := context.Background()
	switch args[0] {
	case "locate":
		runLocate(ctx, tr, args[1], args[2])
	case "bin-ranges":
		runBinRanges(ctx, tr, args[1], args[2:])
	case "dump-cache":
		runDumpCache(ctx, tr, args[1], args[2])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: locatorctl locate <table> <row>")
	fmt.Fprintln(os.Stderr, "       locatorctl bin-ranges <table> <start:end> [<start:end>...]")
	fmt.Fprintln(os.Stderr, "       locatorctl dump-cache <table> <row>")
}

func bootstrap() (*zk.Conn, *locator.TableRegistry, error) {
	servers := strings.Split(zkServers, ",")
	conn, err := zklock.Dial(servers, 15*time.Second)
	if err != nil {
		return nil, nil, err
	}
	checker := zklock.NewChecker(conn)
	reg := zklock.NewRegistry(conn)
	root := locator.NewRootLocator(reg, checker)
	obtain := metaclient.NewGRPCObtainer(dialTimeout, cfg.RetryCount, cfg.RefreshBackoff)
	tr := locator.NewTableRegistry(root, obtain, checker, cfg)
	return conn, tr, nil
}

func runLocate(ctx context.Context, tr *locator.TableRegistry, table, row string) {
	l := tr.GetOrCreate(table)
	loc, err := l.LocateTablet(ctx, key.Row(row), false, true)
	if err != nil {
		log.Exitf("locate: %v", err)
	}
	if loc == nil {
		fmt.Println("no tablet found (hole in metadata)")
		return
	}
	fmt.Printf("row %q -> server=%s session=%s extent=%s\n", row, loc.Server, loc.Session, loc.Extent.MetadataRow())
}

func runBinRanges(ctx context.Context, tr *locator.TableRegistry, table string, specs []string) {
	l := tr.GetOrCreate(table)
	ranges := make([]locator.Range, 0, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 2)
		if len(parts) != 2 {
			log.Exitf("bin-ranges: malformed range %q, want start:end", s)
		}
		ranges = append(ranges, locator.Range{
			StartRow:       rowOrNil(parts[0]),
			StartInclusive: true,
			EndRow:         rowOrNil(parts[1]),
			EndInclusive:   true,
		})
	}

	binned, failures, err := l.BinRanges(ctx, ranges)
	if err != nil {
		log.Exitf("bin-ranges: %v", err)
	}
	for server, byExtent := range binned {
		for extent, rs := range byExtent {
			fmt.Printf("server=%s extent=%s ranges=%d\n", server, extent.MetadataRow(), len(rs))
		}
	}
	for _, r := range failures {
		fmt.Printf("unresolved range start=%q end=%q\n", r.StartRow, r.EndRow)
	}
}

// runDumpCache prints the cached routing for a row as stable, diffable JSON,
// reusing the locate codepath but serializing the result through the same
// structpb.Struct envelope metaclient exchanges over the wire, via
// jsonProtoEncoderDecoder.
func runDumpCache(ctx context.Context, tr *locator.TableRegistry, table, row string) {
	l := tr.GetOrCreate(table)
	loc, err := l.LocateTablet(ctx, key.Row(row), false, true)
	if err != nil {
		log.Exitf("dump-cache: %v", err)
	}
	if loc == nil {
		fmt.Println("{}")
		return
	}

	obj, err := structpb.NewStruct(map[string]interface{}{
		"table_id":     loc.Extent.TableID,
		"end_row":      base64.StdEncoding.EncodeToString(loc.Extent.EndRow),
		"prev_end_row": base64.StdEncoding.EncodeToString(loc.Extent.PrevEndRow),
		"server":       loc.Server,
		"session":      loc.Session,
	})
	if err != nil {
		log.Exitf("dump-cache: encoding: %v", err)
	}

	var codec jsonProtoEncoderDecoder
	out, err := codec.Encode(obj)
	if err != nil {
		log.Exitf("dump-cache: %v", err)
	}
	fmt.Println(string(out))
}

func rowOrNil(s string) key.Row {
	if s == "" {
		return nil
	}
	return key.Row(s)
}
