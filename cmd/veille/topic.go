package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matthewjhunter/veille"
)

func topicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Manage monitoring topics",
	}
	cmd.AddCommand(topicAddCmd(), topicListCmd(), topicShowCmd(), topicEditCmd(), topicDeleteCmd())
	return cmd
}

func topicAddCmd() *cobra.Command {
	var keywords, sentiments []string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			topic, err := engine.CreateTopic(cmd.Context(), args[0], keywords, sentiments)
			if err != nil {
				return err
			}
			return formatter.OutputTopics([]veille.Topic{*topic})
		},
	}
	cmd.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "comma-separated keywords to watch")
	cmd.Flags().StringSliceVarP(&sentiments, "sentiments", "s", nil, "comma-separated sentiment categories (e.g. positif,négatif,neutre)")
	return cmd
}

func topicListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			topics, err := engine.ListTopics(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.OutputTopics(topics)
		},
	}
}

func topicShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <topic-id>",
		Short: "Show a topic and its sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			topic, err := engine.GetTopic(ctx, args[0])
			if err != nil {
				return err
			}
			sources, err := engine.ListSources(ctx, topic.ID)
			if err != nil {
				return err
			}
			if err := formatter.OutputTopics([]veille.Topic{*topic}); err != nil {
				return err
			}
			return formatter.OutputSources(sources)
		},
	}
}

func topicEditCmd() *cobra.Command {
	var name string
	var keywords, sentiments []string
	cmd := &cobra.Command{
		Use:   "edit <topic-id>",
		Short: "Replace a topic's name, keywords or sentiments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			topic, err := engine.GetTopic(ctx, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				topic.Name = name
			}
			if cmd.Flags().Changed("keywords") {
				topic.Keywords = keywords
			}
			if cmd.Flags().Changed("sentiments") {
				topic.Sentiments = sentiments
			}
			if err := engine.SaveTopic(ctx, *topic); err != nil {
				return err
			}
			saved, err := engine.GetTopic(ctx, topic.ID)
			if err != nil {
				return err
			}
			return formatter.OutputTopics([]veille.Topic{*saved})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "new topic name")
	cmd.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "replacement keywords")
	cmd.Flags().StringSliceVarP(&sentiments, "sentiments", "s", nil, "replacement sentiment categories")
	return cmd
}

func topicDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <topic-id>",
		Short: "Delete a topic with its sources and cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.DeleteTopic(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted topic %s\n", args[0])
			return nil
		},
	}
}
