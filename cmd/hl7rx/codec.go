package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
)

type parseOutput struct {
	ControlID   string           `json:"control_id"`
	MessageType string           `json:"message_type"`
	Segments    []string         `json:"segments"`
	Message     *message.Message `json:"message"`
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file]",
		Short: "Decode an HL7 message and print it as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			msg, err := message.Decode(string(raw))
			if err != nil {
				return err
			}

			out := parseOutput{Message: msg}
			if msg.MSH != nil {
				out.ControlID = msg.MSH.MessageControlID
				out.MessageType = msg.MSH.MessageType
			}
			for _, seg := range msg.Segments() {
				out.Segments = append(out.Segments, seg.Tag())
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file]",
		Short: "Print a JSON message in canonical HL7 form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var msg message.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				return fmt.Errorf("decode JSON message: %w", err)
			}
			if len(msg.Segments()) == 0 {
				return message.ErrEmptyMessage
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg.Encode())
			return err
		},
	}
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert an HL7 order for an order event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("event")
			event := convert.ParseEvent(name)
			if !event.Defined() {
				return fmt.Errorf("%w: %q", convert.ErrUnknownEvent, name)
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			msg, err := message.Decode(string(raw))
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			out, err := convert.NewConverter(nil, logger).Convert(msg, event)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Encode())
			return err
		},
	}
	cmd.Flags().String("event", "", "Order event, e.g. ORDER_DISPENSE or DISPENSE")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func instructionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instructions [file]",
		Short: "Print the schedule instruction text of an order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			msg, err := message.Decode(string(raw))
			if err != nil {
				return err
			}

			delimiter, _ := cmd.Flags().GetString("delimiter")
			text, err := msg.JoinScheduleInstructions(delimiter)
			if errors.Is(err, message.ErrNotMultiSchedule) {
				text, err = msg.SingleScheduleInstructions()
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().String("delimiter", "; ", "Separator between schedules of a multi-schedule order")
	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List the order events accepted by convert",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, e := range convert.Events() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), e); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
