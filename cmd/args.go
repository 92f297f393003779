package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plsd/internal/shared"
	"github.com/desertthunder/plsd/internal/source"
)

func argString(cmd *cli.Command, i int, name string) (string, error) {
	s := cmd.Args().Get(i)
	if s == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return s, nil
}

func argUint(cmd *cli.Command, i int, name string) (uint32, error) {
	s, err := argString(cmd, i, name)
	if err != nil {
		return 0, err
	}
	return parseUint(s, name)
}

func parseUint(s, name string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", shared.ErrInvalidArgument, name, s)
	}
	return uint32(v), nil
}

// optionalUint returns false when argument i is absent.
func optionalUint(cmd *cli.Command, i int, name string) (uint32, bool, error) {
	if cmd.Args().Len() <= i {
		return 0, false, nil
	}
	v, err := argUint(cmd, i, name)
	return v, err == nil, err
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on or off, got %q", shared.ErrInvalidArgument, s)
	}
}

// objectIDs turns arguments into object ids. Existing local files become file object ids, everything
// else is passed through unchanged.
func objectIDs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one item", shared.ErrMissingArgument)
	}

	ids := make([]string, 0, len(args))
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, arg, err)
			}
			arg = source.FileObjectID(abs)
		}
		ids = append(ids, arg)
	}
	return ids, nil
}

// importURI accepts either a URI or a local path. Paths are made absolute since the daemon does not share
// the caller's working directory.
func importURI(arg string) (string, error) {
	if arg == "" || strings.Contains(arg, "://") {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, arg, err)
	}
	return abs, nil
}

// lastIndex is the GetItems bound meaning the end of the playlist.
const lastIndex int32 = -1
