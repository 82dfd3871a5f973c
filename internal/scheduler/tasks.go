// Package scheduler runs the asynq-backed background work: sequence ticks,
// per-send dispatch, and the no-response sweep.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSequenceTick = "campaigns.sequence.tick"

const TaskDispatchSend = "campaigns.send.dispatch"

const TaskNoResponseSweep = "campaigns.sweep.no_response"

type SequenceTickPayload struct {
	BatchLimit int `json:"batchLimit"`
}

type DispatchSendPayload struct {
	EmailSendID string `json:"emailSendId"`
}

type NoResponseSweepPayload struct {
	BatchLimit int `json:"batchLimit"`
}

func NewSequenceTickTask(payload SequenceTickPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSequenceTick, data), nil
}

func ParseSequenceTickPayload(task *asynq.Task) (SequenceTickPayload, error) {
	var payload SequenceTickPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SequenceTickPayload{}, err
	}
	return payload, nil
}

func NewDispatchSendTask(payload DispatchSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchSend, data), nil
}

func ParseDispatchSendPayload(task *asynq.Task) (DispatchSendPayload, error) {
	var payload DispatchSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DispatchSendPayload{}, err
	}
	return payload, nil
}

func NewNoResponseSweepTask(payload NoResponseSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNoResponseSweep, data), nil
}

func ParseNoResponseSweepPayload(task *asynq.Task) (NoResponseSweepPayload, error) {
	var payload NoResponseSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NoResponseSweepPayload{}, err
	}
	return payload, nil
}
