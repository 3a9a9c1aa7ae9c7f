package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semql/internal/cli/output"
	"github.com/leapstack-labs/semql/pkg/transform"
)

// Validation rules.
const (
	RuleManifest      = "manifest"
	RuleColumnIsValid = "column_is_valid"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Model  string
	Column string
}

// errValidationFailed is returned after a failed rule has been reported.
var errValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [rule]",
		Short: "Validate the manifest or a column",
		Long: `Run a validation rule against the configured manifest.

Rules:
  manifest         check the manifest structure and analyze every column (default)
  column_is_valid  check that --column of --model can be queried`,
		Example: `  # Validate the manifest
  semql validate

  # Check that a column can be queried
  semql validate column_is_valid --model orders --column customer_name`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{RuleManifest, RuleColumnIsValid},
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := RuleManifest
			if len(args) == 1 {
				rule = args[0]
			}
			return runValidate(cmd, rule, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "Model of column_is_valid")
	cmd.Flags().StringVar(&opts.Column, "column", "", "Column of column_is_valid")

	return cmd
}

func runValidate(cmd *cobra.Command, rule string, opts *ValidateOptions) error {
	if rule != RuleManifest && rule != RuleColumnIsValid {
		return fmt.Errorf("unknown validation rule %q", rule)
	}
	if rule == RuleColumnIsValid && (opts.Model == "" || opts.Column == "") {
		return errors.New("column_is_valid requires --model and --column")
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	var ruleErr error
	switch rule {
	case RuleManifest:
		ruleErr = cc.validateManifest(cmd)
	case RuleColumnIsValid:
		ruleErr = cc.validateColumn(cmd, opts.Model, opts.Column)
	}

	r := cc.Renderer
	res := output.ValidateOutput{Rule: rule, Valid: ruleErr == nil}
	if ruleErr != nil {
		res.Error = ruleErr.Error()
	}

	switch {
	case r.EffectiveMode() == output.ModeJSON:
		if err := r.JSON(res); err != nil {
			return err
		}
	case ruleErr == nil:
		r.StatusLine(rule, "success", "")
	default:
		r.StatusLine(rule, "failed", "")
		r.Error(ruleErr.Error())
	}

	if ruleErr != nil {
		return errValidationFailed
	}
	return nil
}

func (c *CommandContext) validateManifest(cmd *cobra.Command) error {
	m, err := c.LoadManifest()
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	tables, cleanup, err := c.Tables(cmd.Context(), m)
	if err != nil {
		return err
	}
	defer cleanup()
	_, err = transform.Analyze(m, transform.WithTables(tables))
	return err
}

func (c *CommandContext) validateColumn(cmd *cobra.Command, model, column string) error {
	am, cleanup, err := c.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := c.Session()
	if err != nil {
		return err
	}
	return transform.ValidateColumn(cmd.Context(), sess, am, model, column)
}
