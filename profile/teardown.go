// MIT License
//
// Copyright (c) 2022-2026 Arsene Tochemey Gandote
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package profile

import (
	"io"
	"sync"

	"github.com/tochemey/profilestore/eventstream"
	"github.com/tochemey/profilestore/log"
)

// teardownKind is the closed set of teardown task variants.
type teardownKind int

const (
	teardownCallback teardownKind = iota
	teardownSubscription
	teardownResource
)

// teardownTask is one registered cleanup action. Exactly one of the variant
// fields is set, selected by kind.
type teardownTask struct {
	kind         teardownKind
	callback     func()
	subscription eventstream.Subscriber
	resource     io.Closer
}

// teardownList collects cleanup actions registered over a profile's lifetime
// and disposes them in reverse registration order on detach.
type teardownList struct {
	mu     sync.Mutex
	stream eventstream.Stream
	tasks  []teardownTask
	done   bool
}

func newTeardownList(stream eventstream.Stream) *teardownList {
	return &teardownList{stream: stream}
}

func (l *teardownList) addCallback(callback func()) {
	if callback == nil {
		return
	}
	l.add(teardownTask{kind: teardownCallback, callback: callback})
}

func (l *teardownList) addSubscription(sub eventstream.Subscriber) {
	if sub == nil {
		return
	}
	l.add(teardownTask{kind: teardownSubscription, subscription: sub})
}

func (l *teardownList) addResource(resource io.Closer) {
	if resource == nil {
		return
	}
	l.add(teardownTask{kind: teardownResource, resource: resource})
}

func (l *teardownList) add(task teardownTask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		// the owner already detached; dispose immediately
		l.dispose(task, log.DiscardLogger)
		return
	}
	l.tasks = append(l.tasks, task)
}

// run disposes every registered task in reverse registration order. It is
// idempotent.
func (l *teardownList) run(logger log.Logger) {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return
	}
	l.done = true
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for i := len(tasks) - 1; i >= 0; i-- {
		l.dispose(tasks[i], logger)
	}
}

func (l *teardownList) dispose(task teardownTask, logger log.Logger) {
	switch task.kind {
	case teardownCallback:
		task.callback()
	case teardownSubscription:
		l.stream.RemoveSubscriber(task.subscription)
	case teardownResource:
		if err := task.resource.Close(); err != nil {
			logger.Warnf("teardown: closing resource: %v", err)
		}
	}
}
