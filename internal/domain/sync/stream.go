package sync

import (
	"context"
	"errors"
)

type execFunc func(ctx context.Context, emit func(Snapshot) error) (snap Snapshot, runErr, saveErr error)

// Stream итератор по снимкам прогона синхронизации.
//
//	stream := svc.Start(ctx, opts)
//	defer stream.Close()
//	for stream.Next() {
//		render(stream.Snapshot())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Прогон стартует при первом вызове Next и после каждого снимка ждет следующего вызова Next.
// Stream не предназначен для использования из нескольких горутин.
type Stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	exec   execFunc

	updates chan Snapshot
	resume  chan struct{}
	done    chan struct{}

	started  bool
	finished bool
	current  Snapshot

	// заполняются горутиной прогона до закрытия done
	final   Snapshot
	err     error
	saveErr error
}

func newStream(ctx context.Context, exec execFunc) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		ctx:     ctx,
		cancel:  cancel,
		exec:    exec,
		updates: make(chan Snapshot),
		resume:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Next продвигает прогон до следующего снимка.
// Возвращает false, когда прогон завершен успешно или с ошибкой.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}
	if !s.started {
		s.started = true
		go s.loop()
	} else {
		select {
		case s.resume <- struct{}{}:
		case <-s.done:
		}
	}

	select {
	case snap := <-s.updates:
		s.current = snap
		return true
	case <-s.done:
		s.finish()
		return false
	}
}

// Snapshot последний полученный снимок
func (s *Stream) Snapshot() Snapshot {
	return s.current
}

// Err ошибка прогона. Доступна после того, как Next вернул false.
func (s *Stream) Err() error {
	if !s.finished {
		return nil
	}
	return s.err
}

// Close отменяет незавершенный прогон и ждет его остановки.
// Счетчик вызовов API сохраняется в любом случае, ошибка его сохранения возвращается из Close.
func (s *Stream) Close() error {
	s.cancel()
	if s.started && !s.finished {
		<-s.done
		s.finish()
	}
	s.finished = true
	return s.saveErr
}

func (s *Stream) finish() {
	s.finished = true
	s.current = s.final
}

func (s *Stream) loop() {
	defer close(s.done)
	snap, runErr, saveErr := s.exec(s.ctx, s.emit)
	s.final = snap
	s.err = errors.Join(runErr, saveErr)
	s.saveErr = saveErr
}

func (s *Stream) emit(snap Snapshot) error {
	select {
	case s.updates <- snap:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case <-s.resume:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
