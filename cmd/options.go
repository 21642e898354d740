package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/liamg/portaudit/audit"
	"github.com/liamg/portaudit/scan"
	"github.com/spf13/viper"
)

// Options is the resolved invocation after flags, environment and config file
// have been merged.
type Options struct {
	Host        string `validate:"required"`
	AllowList   string
	StartPort   int    `validate:"min=0,max=65536"`
	EndPort     int    `validate:"min=0,max=65536,gtefield=StartPort"`
	TimeoutMS   int    `validate:"min=0"`
	Workers     int    `validate:"min=1"`
	ScanType    string `validate:"oneof=connect stealth syn fast"`
	MetricsFile string
	Verbose     bool
}

var validate = validator.New()

func (o *Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

func (o *Options) Range() scan.Range {
	return scan.NewRange(o.StartPort, o.EndPort)
}

// loadOptions checks the invocation in the order an operator would fix it:
// host first, then the scan range, then everything else.
func loadOptions(v *viper.Viper) (*Options, error) {
	opts := &Options{
		Host:        v.GetString(flagHost),
		AllowList:   v.GetString(flagPorts),
		TimeoutMS:   v.GetInt(flagTimeout),
		Workers:     v.GetInt(flagWorkers),
		ScanType:    strings.ToLower(v.GetString(flagScanType)),
		MetricsFile: v.GetString(flagMetricsFile),
		Verbose:     v.GetBool(flagVerbose),
	}

	if err := validate.StructPartial(opts, "Host"); err != nil {
		return nil, audit.NewConfigError(audit.MessageMissingHost, err)
	}

	start, err := strconv.Atoi(strings.TrimSpace(v.GetString(flagStart)))
	if err != nil {
		return nil, audit.NewConfigError(audit.MessageBadRange, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(v.GetString(flagEnd)))
	if err != nil {
		return nil, audit.NewConfigError(audit.MessageBadRange, err)
	}
	opts.StartPort = start
	opts.EndPort = end

	if err := validate.StructPartial(opts, "StartPort", "EndPort"); err != nil {
		return nil, audit.NewConfigError(audit.MessageBadRange, err)
	}

	if err := validate.Struct(opts); err != nil {
		return nil, audit.NewConfigError(describeValidationError(err), err)
	}

	return opts, nil
}

var optionFlags = map[string]string{
	"TimeoutMS": flagTimeout,
	"Workers":   flagWorkers,
	"ScanType":  flagScanType,
}

func describeValidationError(err error) string {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		name := optionFlags[fe.Field()]
		if name == "" {
			name = strings.ToLower(fe.Field())
		}
		return fmt.Sprintf("Error, invalid value '%v' for --%s", fe.Value(), name)
	}
	return "Error, invalid options"
}
