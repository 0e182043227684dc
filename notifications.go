/*
Copyright 2024 Haven Payments Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package haven

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/havenpay/haven/config"
	"github.com/havenpay/haven/model"
)

const WEBHOOK_QUEUE = "new:webhook"

// NewWebhook represents the structure of a merchant webhook notification.
// It includes an event type and associated payload data.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// getEventFromRecord maps a record kind and terminal status to the event
// string sent to the merchant.
func getEventFromRecord(kind, status string) string {
	var prefix string
	switch kind {
	case model.KindDeposit:
		prefix = "deposit"
	case model.KindWithdrawal:
		prefix = "withdrawal"
	default:
		prefix = "record"
	}
	switch status {
	case model.StatusPaid:
		return prefix + ".paid"
	case model.StatusFailed:
		return prefix + ".failed"
	default:
		return prefix + "." + strings.ToLower(status)
	}
}

// processHTTP sends a webhook notification via HTTP POST request.
func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}

	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Request failed with status code: %d\n", resp.StatusCode)
		return nil
	}

	log.Println("Webhook notification sent:", data.Event)
	return nil
}

// SendWebhook enqueues a merchant webhook notification task. Notifications are
// best effort: a merchant that is down never blocks reconciliation.
func SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: conf.Redis.Dns})
	defer func() {
		_ = client.Close()
	}()
	payload, err := json.Marshal(newWebhook)
	if err != nil {
		log.Println("Error marshaling webhook payload:", err)
		return err
	}
	taskOptions := []asynq.Option{asynq.Queue(WEBHOOK_QUEUE)}
	task := asynq.NewTask(WEBHOOK_QUEUE, payload, taskOptions...)
	info, err := client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// ProcessWebhook processes a webhook notification task from the queue.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	log.Printf("Processing webhook: %+v\n", payload.Event)
	return processHTTP(payload)
}
