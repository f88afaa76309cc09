package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/manav03panchal/timely/internal/model"
)

const alarmsPath = "/alarms"

func alarmPath(id int64) string {
	return fmt.Sprintf("%s/%d", alarmsPath, id)
}

// ListAlarms fetches the user's alarms.
func (c *Client) ListAlarms(ctx context.Context) ([]model.Alarm, error) {
	body, err := c.do(ctx, "list alarms", http.MethodGet, alarmsPath, nil)
	if err != nil {
		return nil, err
	}
	return decodeAlarms("list alarms", body, false)
}

// GetAlarm fetches one alarm.
func (c *Client) GetAlarm(ctx context.Context, id int64) (model.Alarm, error) {
	body, err := c.do(ctx, "get alarm", http.MethodGet, alarmPath(id), nil)
	if err != nil {
		return model.Alarm{}, err
	}
	return decodeAlarm("get alarm", body)
}

// CreateAlarm creates an alarm and returns the server record.
func (c *Client) CreateAlarm(ctx context.Context, in model.AlarmInput) (model.Alarm, error) {
	body, err := c.do(ctx, "create alarm", http.MethodPost, alarmsPath, in)
	if err != nil {
		return model.Alarm{}, err
	}
	return decodeAlarm("create alarm", body)
}

// UpdateAlarm applies a partial update.
func (c *Client) UpdateAlarm(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error) {
	body, err := c.do(ctx, "update alarm", http.MethodPut, alarmPath(id), patch)
	if err != nil {
		return model.Alarm{}, err
	}
	return decodeAlarm("update alarm", body)
}

// DeleteAlarm deletes an alarm.
func (c *Client) DeleteAlarm(ctx context.Context, id int64) error {
	_, err := c.do(ctx, "delete alarm", http.MethodDelete, alarmPath(id), nil)
	return err
}

type toggleRequest struct {
	IsActive bool `json:"isActive"`
}

// ToggleAlarm sets the active flag.
func (c *Client) ToggleAlarm(ctx context.Context, id int64, active bool) (model.Alarm, error) {
	body, err := c.do(ctx, "toggle alarm", http.MethodPut, alarmPath(id)+"/toggle", toggleRequest{IsActive: active})
	if err != nil {
		return model.Alarm{}, err
	}
	return decodeAlarm("toggle alarm", body)
}

type syncRequest struct {
	Alarms []model.Alarm `json:"alarms"`
}

// SyncAlarms pushes the local list and returns the server's authoritative
// list.
func (c *Client) SyncAlarms(ctx context.Context, alarms []model.Alarm) ([]model.Alarm, error) {
	if alarms == nil {
		alarms = []model.Alarm{}
	}
	body, err := c.do(ctx, "sync alarms", http.MethodPost, alarmsPath+"/sync", syncRequest{Alarms: alarms})
	if err != nil {
		return nil, err
	}
	return decodeAlarms("sync alarms", body, true)
}
