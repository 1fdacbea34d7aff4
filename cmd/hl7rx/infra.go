package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/drfirst/go-rxhl7/internal/domain/conversion"
	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/redpanda"
)

const opTimeout = 30 * time.Second

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage pipeline topics",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the inbound, outbound and dead letter topics if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin, inbound, outbound string) error {
				created, err := admin.EnsureTopics(ctx, redpanda.DefaultTopicConfigs(inbound, outbound))
				if err != nil {
					return err
				}
				if len(created) == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "all topics exist")
					return err
				}
				for _, t := range created {
					fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin, _, _ string) error {
				topics, err := admin.ListTopics(ctx)
				if err != nil {
					return err
				}
				for _, t := range topics {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	})

	lagCmd := &cobra.Command{
		Use:   "lag",
		Short: "Show consumer group lag per partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			group, _ := cmd.Flags().GetString("group")
			return withAdmin(cmd, func(ctx context.Context, admin *redpanda.Admin, _, _ string) error {
				lag, err := admin.GetConsumerGroupLag(ctx, group)
				if err != nil {
					return err
				}
				return printLag(cmd, lag)
			})
		},
	}
	lagCmd.Flags().String("group", "hl7-conversion-worker", "Consumer group")
	cmd.AddCommand(lagCmd)

	return cmd
}

func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, admin *redpanda.Admin, inbound, outbound string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		return err
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
	defer cancel()
	return fn(ctx, admin, cfg.InboundTopic, cfg.OutboundTopic)
}

func printLag(cmd *cobra.Command, lag map[string]map[int32]int64) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tPARTITION\tLAG")

	topics := make([]string, 0, len(lag))
	for t := range lag {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		partitions := make([]int32, 0, len(lag[t]))
		for p := range lag[t] {
			partitions = append(partitions, p)
		}
		sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
		for _, p := range partitions {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", t, p, lag[t][p])
		}
	}
	return tw.Flush()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool, logger)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return err
		},
	}
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [file]",
		Short: "Produce an HL7 order to the inbound topic",
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
			body := trimTrailingNewlines(raw)
			controlID := message.PeekControlID(body)
			if controlID == "" {
				return fmt.Errorf("%w: no MSH control id", message.ErrMissingSegment)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			topic, _ := cmd.Flags().GetString("topic")
			if topic == "" {
				topic = cfg.InboundTopic
			}

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			producerCfg := redpanda.DefaultProducerConfig()
			producerCfg.Brokers = cfg.KafkaBrokers
			producer, err := redpanda.NewProducer(producerCfg, logger)
			if err != nil {
				return err
			}
			defer producer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opTimeout)
			defer cancel()

			headers := map[string]string{conversion.HeaderEvent: event.String()}
			if err := producer.Publish(ctx, topic, controlID, []byte(body), headers); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s) to %s\n", controlID, event, topic)
			return err
		},
	}
	cmd.Flags().String("event", "", "Order event carried in the hl7-event header")
	cmd.Flags().String("topic", "", "Destination topic (defaults to INBOUND_TOPIC)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
