package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the header of a checkpoint as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			header, err := serialization.Inspect(path)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(header, "", "  ")
			if err != nil {
				return fmt.Errorf("encode header: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "checkpoint to inspect")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var path, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a checkpoint to SafeTensors",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger(g.logLevel, g.devLog)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			model, header, err := serialization.Load(path, logger)
			if err != nil {
				return err
			}
			defer model.Close()

			if err := serialization.ExportSafeTensors(out, model, header.Metadata); err != nil {
				return err
			}
			logger.Info("exported safetensors", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "checkpoint to export")
	cmd.Flags().StringVarP(&out, "out", "o", "model.safetensors", "output file")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}
