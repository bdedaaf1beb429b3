package engine

import (
	"sort"
	"sync"
	"time"
)

// ConnectionState описывает состояние подключения участника live-режима.
// Чисто информационное: на счет не влияет, отключившийся участник
// сохраняет очки и может вернуться.
type ConnectionState string

const (
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
	ConnectionStateDisconnected ConnectionState = "disconnected"
)

// Participant - запись об участнике live-режима. Лидерборд хранит только
// счет и состояние подключения; жизненным циклом идентичности участника
// владеет презентационный слой.
type Participant struct {
	ID              string
	DisplayName     string
	ConnectionState ConnectionState
	Score           int
	LastAttemptAt   time.Time

	// scoreSeq - порядковый номер обновления, которым участник достиг
	// текущего счета. Монотонный счетчик вместо wall-clock исключает
	// неоднозначность равных таймстемпов при разрешении ничьих.
	scoreSeq uint64
}

// LeaderboardEntry - производная строка рейтинга. Не хранится:
// пересчитывается из счетов участников при каждом чтении.
type LeaderboardEntry struct {
	ParticipantID string
	DisplayName   string
	Score         int
	Rank          int
}

// Leaderboard агрегирует очки участников нескольких сессий одной live-викторины
// и строит рейтинг. Rank пересчитывается лениво при чтении, инкрементального
// состояния рейтинга нет - нечему рассинхронизироваться.
type Leaderboard struct {
	mu           sync.Mutex
	participants map[string]*Participant
	seq          uint64
}

// NewLeaderboard создает пустой лидерборд.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		participants: make(map[string]*Participant),
	}
}

// Register добавляет участника с нулевым счетом, если его еще нет.
// Повторная регистрация обновляет отображаемое имя и состояние подключения.
func (lb *Leaderboard) Register(participantID, displayName string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	p := lb.getOrCreate(participantID)
	if displayName != "" {
		p.DisplayName = displayName
	}
	p.ConnectionState = ConnectionStateConnected
}

// OnAnswerRevealed обновляет счет участника по раскрытой попытке.
// Неизвестный участник создается со счетом 0 (поздно присоединившиеся) -
// этот вызов не завершается ошибкой никогда.
func (lb *Leaderboard) OnAnswerRevealed(participantID string, attempt Attempt, pointValue int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	p := lb.getOrCreate(participantID)
	p.LastAttemptAt = time.Now()

	if attempt.IsCorrect {
		lb.seq++
		p.Score += pointValue
		p.scoreSeq = lb.seq
	}
}

// SetConnectionState обновляет состояние подключения участника.
// Неизвестный участник создается, счет существующего не трогается.
func (lb *Leaderboard) SetConnectionState(participantID string, state ConnectionState) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	p := lb.getOrCreate(participantID)
	p.ConnectionState = state
}

// Rank возвращает рейтинг: счет по убыванию, при равенстве - кто раньше
// достиг этого счета, далее по ID для полной детерминированности.
// Чистая функция текущих счетов: повторный вызов без обновлений дает
// идентичный результат.
func (lb *Leaderboard) Rank() []LeaderboardEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	entries := make([]LeaderboardEntry, 0, len(lb.participants))
	seqs := make(map[string]uint64, len(lb.participants))
	for _, p := range lb.participants {
		entries = append(entries, LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
		})
		seqs[p.ID] = p.scoreSeq
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if seqs[a.ParticipantID] != seqs[b.ParticipantID] {
			return seqs[a.ParticipantID] < seqs[b.ParticipantID]
		}
		return a.ParticipantID < b.ParticipantID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Participant возвращает копию записи участника.
func (lb *Leaderboard) Participant(participantID string) (Participant, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	p, ok := lb.participants[participantID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// getOrCreate возвращает запись участника, создавая ее при необходимости.
// Вызывается под блокировкой.
func (lb *Leaderboard) getOrCreate(participantID string) *Participant {
	if p, ok := lb.participants[participantID]; ok {
		return p
	}
	p := &Participant{
		ID:              participantID,
		DisplayName:     participantID,
		ConnectionState: ConnectionStateConnected,
	}
	lb.participants[participantID] = p
	return p
}
