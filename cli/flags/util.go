package flags

import (
	"slices"

	"github.com/urfave/cli/v2"
)

// MarkRequired returns a copy of the flag set with the named flags marked as
// required.
func MarkRequired(flagSet []cli.Flag, names ...string) []cli.Flag {
	updatedflagSet := make([]cli.Flag, 0, len(flagSet))
	for _, flag := range flagSet {
		if slices.Contains(names, flag.Names()[0]) {
			switch f := flag.(type) {
			case *cli.StringFlag:
				c := *f
				c.Required = true
				flag = &c
			case *cli.IntFlag:
				c := *f
				c.Required = true
				flag = &c
			case *cli.BoolFlag:
				c := *f
				c.Required = true
				flag = &c
			case *AddressFlag:
				c := *f
				c.Required = true
				flag = &c
			}
		}
		updatedflagSet = append(updatedflagSet, flag)
	}
	return updatedflagSet
}
