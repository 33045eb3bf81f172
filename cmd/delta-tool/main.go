// Copyright 2023 ColStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// delta-tool runs maintenance operations against one table directory:
//
//	delta-tool clean  -table /path/to/table [-force]   remove stale delta and status files
//	delta-tool sweep  -table /path/to/table            expire old trash buckets
//	delta-tool empty  -table /path/to/table            remove the trash folder entirely
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/gc"
	"github.com/colstore/deltastore/pkg/logutil"
	"github.com/colstore/deltastore/pkg/meta"
	"github.com/colstore/deltastore/pkg/trash"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s {clean|sweep|empty} [flags]\n", os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	tablePath := fs.String("table", "", "path of the table directory")
	configFile := fs.String("config", "", "path of the TOML properties file")
	force := fs.Bool("force", false, "bypass the query timeout window (clean only)")
	isIndexTable := fs.Bool("index", false, "treat the table as a secondary index table")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *tablePath == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -table")
		usage()
	}

	props := &config.Properties{}
	if *configFile != "" {
		var err error
		if props, err = config.LoadProperties(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "cannot load properties: %v\n", err)
			os.Exit(1)
		}
	}
	props.FillDefaults()

	logutil.SetupLogger(&logutil.LogConfig{Level: "info", Format: "console"})

	path := strings.TrimSuffix(*tablePath, meta.SeparatorChar)
	table := &meta.Table{
		Database:     "default",
		Name:         path[strings.LastIndex(path, meta.SeparatorChar)+1:],
		Path:         path,
		IsStandard:   true,
		IsIndexTable: *isIndexTable,
	}

	ctx := context.Background()
	localFS := fileservice.LocalFS{}

	switch cmd {
	case "clean":
		cleaner := gc.NewCleaner(localFS, props)
		if err := cleaner.CleanUpDeltaFiles(ctx, table, *force); err != nil {
			fmt.Fprintf(os.Stderr, "clean failed: %v\n", err)
			os.Exit(1)
		}
	case "sweep":
		trash.NewArchiver(localFS, props).DeleteExpiredDataFromTrash(ctx, table.Path)
	case "empty":
		trash.NewArchiver(localFS, props).EmptyTrash(ctx, table.Path)
	default:
		usage()
	}
}
