package orders

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
)

var validNext = map[OutboxStatus]map[OutboxStatus]bool{
	OutboxPending:   {OutboxPublished: true},
	OutboxPublished: {},
}

func CanTransition(from, to OutboxStatus) bool {
	return validNext[from][to]
}
