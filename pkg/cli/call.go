package cli

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/typedrest/typedrest/pkg/converter/jsonconv"
	"github.com/typedrest/typedrest/pkg/converter/xmlconv"
	"github.com/typedrest/typedrest/pkg/converter/yamlconv"
	"github.com/typedrest/typedrest/pkg/descriptor"
	"github.com/typedrest/typedrest/pkg/dispatch"
	"github.com/typedrest/typedrest/pkg/openapi"
	"github.com/typedrest/typedrest/pkg/transport"
)

var (
	callSpec       string
	callBaseURL    string
	callData       string
	callSelect     string
	callTimeout    time.Duration
	callRequestIDs bool
)

var callCmd = &cobra.Command{
	Use:   "call <operation> [param=value...]",
	Short: "Dispatch one operation from the OpenAPI document",
	Long: `Dispatch one operation by its operationId. Path, query, and header
parameters are given as param=value pairs and converted to the declared
types; a JSON request body is given with --data.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, descs, err := buildClient()
		if err != nil {
			return err
		}

		operation := args[0]
		desc := findDescriptor(descs, operation)
		if desc == nil {
			return fmt.Errorf("operation %q not found in %s (try 'typedrest describe')", operation, callSpec)
		}

		callArgs, err := parseCallArgs(desc, args[1:], callData)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()

		resp, err := client.Execute(ctx, operation, callArgs)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", resp.Status())
		if !resp.IsSuccess() {
			if body := resp.ErrorBody(); len(body) > 0 {
				fmt.Println(string(body))
			}
			return nil
		}
		return printBody(resp.Body(), callSelect)
	},
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&callSpec, "spec", "openapi.yaml", "OpenAPI document to load operations from")
	callCmd.Flags().StringVar(&callBaseURL, "base-url", "", "Base URL of the target service (required)")
	callCmd.Flags().StringVar(&callData, "data", "", "JSON request body")
	callCmd.Flags().StringVar(&callSelect, "select", "", "JSONPath expression applied to the response body")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "Overall call timeout")
	callCmd.Flags().BoolVar(&callRequestIDs, "request-ids", false, "Stamp requests with X-Request-Id")
	_ = callCmd.MarkFlagRequired("base-url")
}

// buildClient loads the spec and assembles a client with the full converter
// stack: JSON first, then the annotation-gated YAML and XML factories.
func buildClient() (*dispatch.Client, []*descriptor.Descriptor, error) {
	descs, err := openapi.Load(callSpec, nil)
	if err != nil {
		return nil, nil, err
	}

	opts := []dispatch.Option{
		dispatch.WithConverters(jsonconv.MustNew(), yamlconv.New(), xmlconv.New()),
		dispatch.WithLogger(newLogger()),
		dispatch.WithTransport(transport.NewHTTPCallFactory(
			transport.WithClient(&http.Client{Timeout: callTimeout}),
			transport.WithHTTPLogger(newLogger()),
		)),
	}
	if callRequestIDs {
		opts = append(opts, dispatch.WithRequestIDs())
	}

	client, err := dispatch.New(callBaseURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Register(descs...); err != nil {
		return nil, nil, err
	}
	return client, descs, nil
}

func findDescriptor(descs []*descriptor.Descriptor, name string) *descriptor.Descriptor {
	for _, d := range descs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// parseCallArgs binds param=value pairs (and the --data body) to the
// operation's declared parameters, converting values to their declared
// types.
func parseCallArgs(desc *descriptor.Descriptor, pairs []string, data string) (dispatch.Args, error) {
	args := dispatch.Args{}
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("argument %q is not of the form param=value", pair)
		}
		param := findParam(desc, name)
		if param == nil {
			return nil, fmt.Errorf("operation %q has no parameter %q", desc.Name, name)
		}
		converted, err := convertValue(value, param)
		if err != nil {
			return nil, err
		}
		args[name] = converted
	}

	if data != "" {
		body := desc.BodyParam()
		if body == nil {
			return nil, fmt.Errorf("operation %q does not accept a request body", desc.Name)
		}
		parsed, err := oj.ParseString(data)
		if err != nil {
			return nil, fmt.Errorf("--data is not valid JSON: %w", err)
		}
		args[body.Name] = parsed
	}
	return args, nil
}

func findParam(desc *descriptor.Descriptor, name string) *descriptor.Param {
	for i := range desc.Params {
		if desc.Params[i].Name == name {
			return &desc.Params[i]
		}
	}
	return nil
}

func convertValue(value string, param *descriptor.Param) (any, error) {
	switch param.Type.Kind() {
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q expects an integer: %w", param.Name, err)
		}
		return n, nil
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q expects a number: %w", param.Name, err)
		}
		return f, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q expects a boolean: %w", param.Name, err)
		}
		return b, nil
	default:
		return value, nil
	}
}

// printBody renders the converted response body, optionally narrowed by a
// JSONPath expression.
func printBody(body any, selector string) error {
	if body == nil {
		return nil
	}
	if selector != "" {
		expr, err := jp.ParseString(selector)
		if err != nil {
			return fmt.Errorf("invalid --select expression: %w", err)
		}
		matches := expr.Get(body)
		switch len(matches) {
		case 0:
			return nil
		case 1:
			body = matches[0]
		default:
			body = matches
		}
	}

	switch v := body.(type) {
	case string:
		fmt.Println(v)
	case []byte:
		fmt.Println(string(v))
	default:
		fmt.Println(oj.JSON(v, 2))
	}
	return nil
}
