// Command pstorage explores and manipulates a storage tree from the shell.
//
// The tree is rooted either at a local directory (--root) or at an S3
// bucket (--s3-endpoint and friends). Zip archives inside the tree are
// mounted transparently, so paths may reach through them:
//
//	pstorage --root ./data ls bundle.zip/docs
//	pstorage --root ./data cat bundle.zip/docs/readme.txt
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jindal1979/PortableStorage/core"
	"github.com/jindal1979/PortableStorage/local"
	"github.com/jindal1979/PortableStorage/s3"
	"github.com/jindal1979/PortableStorage/zipstorage"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pstorage: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("pstorage", pflag.ContinueOnError)
	rootDir := flags.String("root", ".", "local directory backing the storage tree")
	cacheTimeout := flags.Duration("cache-timeout", core.DefaultCacheTimeout, "entry cache staleness window (0 disables caching)")
	caseInsensitive := flags.Bool("case-insensitive", false, "ignore case in names and patterns")
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")

	s3Endpoint := flags.String("s3-endpoint", "", "S3 endpoint; selects the S3 backend instead of --root")
	s3Bucket := flags.String("s3-bucket", "", "S3 bucket name")
	s3AccessKey := flags.String("s3-access-key", "", "S3 access key")
	s3SecretKey := flags.String("s3-secret-key", "", "S3 secret key")
	s3Prefix := flags.String("s3-prefix", "", "key prefix inside the bucket")
	s3SSL := flags.Bool("s3-ssl", true, "use HTTPS for the S3 endpoint")

	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: pstorage [flags] <command> [args]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "commands:")
		fmt.Fprintln(os.Stderr, "  ls [pattern]       list entries, optionally filtered by wildcard")
		fmt.Fprintln(os.Stderr, "  cat <path>         print a stream's contents")
		fmt.Fprintln(os.Stderr, "  write <path>       store stdin at path")
		fmt.Fprintln(os.Stderr, "  mkdir <path>       create a storage, with parents")
		fmt.Fprintln(os.Stderr, "  rm <path>          delete a stream or storage")
		fmt.Fprintln(os.Stderr, "  mv <path> <name>   rename an item in place")
		fmt.Fprintln(os.Stderr, "  cp <src> <dst>     copy a stream or subtree")
		fmt.Fprintln(os.Stderr, "  free               report the backend's free space")
		fmt.Fprintln(os.Stderr)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("no command given")
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	provider, err := newProvider(*rootDir, *s3Endpoint, *s3Bucket, *s3AccessKey, *s3SecretKey, *s3Prefix, *s3SSL)
	if err != nil {
		return err
	}

	opts := []core.Option{
		core.WithCacheTimeout(*cacheTimeout),
		core.WithLogger(logger),
		core.WithVirtualProvider(".zip", zipstorage.NewFactory()),
	}
	if *caseInsensitive {
		opts = append(opts, core.WithCaseInsensitive())
	}

	root, err := core.New(provider, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	return dispatch(root, cmd, rest, out)
}

func newProvider(rootDir, endpoint, bucket, accessKey, secretKey, prefix string, ssl bool) (core.Provider, error) {
	if endpoint != "" {
		return s3.New(s3.Config{
			Endpoint:  endpoint,
			Bucket:    bucket,
			AccessKey: accessKey,
			SecretKey: secretKey,
			Prefix:    prefix,
			UseSSL:    ssl,
		})
	}
	return local.NewLocal(rootDir)
}

func dispatch(root *core.Root, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "ls":
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		return cmdList(root, pattern, out)
	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("cat: expected exactly one path")
		}
		return cmdCat(root, args[0], out)
	case "write":
		if len(args) != 1 {
			return fmt.Errorf("write: expected exactly one path")
		}
		return cmdWrite(root, args[0], os.Stdin)
	case "mkdir":
		if len(args) != 1 {
			return fmt.Errorf("mkdir: expected exactly one path")
		}
		_, err := root.OpenOrCreateStorage(args[0])
		return err
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("rm: expected exactly one path")
		}
		return cmdRemove(root, args[0])
	case "mv":
		if len(args) != 2 {
			return fmt.Errorf("mv: expected a path and a new name")
		}
		return root.Rename(args[0], args[1])
	case "cp":
		if len(args) != 2 {
			return fmt.Errorf("cp: expected a source and a destination")
		}
		return root.Copy(args[0], root.Storage, args[1])
	case "free":
		return cmdFree(root, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdList(root *core.Root, pattern string, out io.Writer) error {
	entries, err := root.Entries(pattern)
	if err != nil {
		return err
	}
	for _, e := range entries {
		kind := "-"
		switch {
		case e.IsVirtualStorage:
			kind = "z"
		case e.IsStorage:
			kind = "d"
		}
		mtime := ""
		if e.LastWriteTime != nil {
			mtime = e.LastWriteTime.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%s %10d  %-20s  %s\n", kind, e.Size, mtime, e.Name)
	}
	return nil
}

func cmdCat(root *core.Root, path string, out io.Writer) error {
	rs, err := root.OpenStream(path, core.ModeOpen, core.AccessRead)
	if err != nil {
		return err
	}
	defer func() { _ = rs.Close() }()
	_, err = io.Copy(out, rs)
	return err
}

func cmdWrite(root *core.Root, path string, in io.Reader) error {
	ws, err := root.OpenStream(path, core.ModeCreate, core.AccessWrite)
	if err != nil {
		return err
	}
	if _, err := io.Copy(ws, in); err != nil {
		_ = ws.Close()
		return err
	}
	return ws.Close()
}

func cmdRemove(root *core.Root, path string) error {
	ok, err := root.StorageExists(path)
	if err != nil {
		return err
	}
	if ok {
		return root.DeleteStorage(path)
	}
	return root.DeleteStream(path)
}

func cmdFree(root *core.Root, out io.Writer) error {
	free, err := root.FreeSpace()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d bytes free\n", free)
	return nil
}
