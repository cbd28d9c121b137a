package engine

import (
	"crypto/rand"
	"encoding/binary"
	randv2 "math/rand/v2"
	"sync"
)

// Source — источник равномерных чисел в [0, 1).
// Каталог строится из одного источника, а выбор сценариев идёт из другого,
// чтобы тесты могли подставить фиксированную последовательность.
type Source interface {
	Float64() float64
}

// Mulberry32 — маленький детерминированный генератор на 32 битах состояния.
// Используется для построения колоды и локальных генераторов сценариев:
// одинаковый seed всегда даёт одинаковую сетку.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 создаёт генератор с заданным seed.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 возвращает следующее 32-битное значение.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6d2b79f5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Float64 возвращает значение в [0, 1) с шагом 2^-32.
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296.0
}

// PCGSource — потокобезопасный сидированный источник на math/rand/v2.
// Нужен для воспроизводимых прогонов (ENGINE_SCENARIO_SEED, ENGINE_RNG_SEED).
type PCGSource struct {
	mu  sync.Mutex
	rnd *randv2.Rand
}

// NewPCGSource создаёт источник PCG из seed.
func NewPCGSource(seed uint64) *PCGSource {
	return &PCGSource{rnd: randv2.New(randv2.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *PCGSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// CryptoSource — источник на crypto/rand. Боевой вариант для выбора сценариев.
type CryptoSource struct{}

// Float64 берёт 53 случайных бита, чтобы результат был равномерным в [0, 1).
func (CryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand не возвращает ошибок на поддерживаемых платформах
		panic("engine: crypto/rand недоступен: " + err.Error())
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// SequenceSource отдаёт заданные значения по кругу.
// Для тестов, где нужен точный контроль над каждым броском.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource создаёт источник из списка значений. Пустой список даёт нули.
func NewSequenceSource(values ...float64) *SequenceSource {
	return &SequenceSource{values: values}
}

func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// intn возвращает floor(u × n) с защитой от u == 1 у внешних источников.
func intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
