//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// CaptureRecord matches the structure written by internal/relay/capture.go
type CaptureRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Channel    string    `json:"channel"`
	ClientID   string    `json:"client_id"`
	Direction  string    `json:"direction"`
	Topic      string    `json:"topic"`
	PayloadLen int       `json:"payload_length"`
	Payload    string    `json:"payload"`
}

type topicStats struct {
	count      int
	bytes      int
	heartbeats int
	numeric    int
	first      time.Time
	last       time.Time
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-captures <jsonl-file>")
		fmt.Println("Example: analyze-captures captures/capture-20260830-091500.jsonl")
		os.Exit(1)
	}

	filename := os.Args[1]
	file, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	byTopic := make(map[string]*topicStats)
	byClient := make(map[string]int)
	channels := make(map[string]bool)
	total := 0
	parseErrors := 0

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec CaptureRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			fmt.Printf("Error parsing line %d: %v\n", lineNum, err)
			parseErrors++
			continue
		}

		total++
		channels[rec.Channel] = true
		byClient[rec.ClientID]++

		stats := byTopic[rec.Topic]
		if stats == nil {
			stats = &topicStats{first: rec.Timestamp}
			byTopic[rec.Topic] = stats
		}
		stats.count++
		stats.bytes += rec.PayloadLen
		stats.last = rec.Timestamp

		var doc struct {
			Value any `json:"value"`
		}
		if err := json.Unmarshal([]byte(rec.Payload), &doc); err == nil {
			switch doc.Value.(type) {
			case string:
				stats.heartbeats++
			case float64:
				stats.numeric++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== SmartMotor Capture Analyzer ===\n")
	fmt.Printf("File:     %s\n", filename)
	fmt.Printf("Messages: %d", total)
	if parseErrors > 0 {
		fmt.Printf(" (%d unparseable lines skipped)", parseErrors)
	}
	fmt.Println()
	fmt.Printf("Channels: %d\n", len(channels))
	fmt.Printf("Clients:  %d\n\n", len(byClient))

	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	fmt.Println("Topic                       Msgs   Values  Heartbeats  Bytes    Rate")
	fmt.Println("--------------------------  -----  ------  ----------  -------  --------")
	for _, topic := range topics {
		stats := byTopic[topic]
		rate := "-"
		if span := stats.last.Sub(stats.first); span > 0 && stats.count > 1 {
			rate = fmt.Sprintf("%.2f/s", float64(stats.count-1)/span.Seconds())
		}
		fmt.Printf("%-26s  %5d  %6d  %10d  %7d  %s\n",
			topic, stats.count, stats.numeric, stats.heartbeats, stats.bytes, rate)
	}

	fmt.Println("\nPer-client message counts:")
	clients := make([]string, 0, len(byClient))
	for id := range byClient {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	for _, id := range clients {
		fmt.Printf("  %s  %d\n", id, byClient[id])
	}
}
