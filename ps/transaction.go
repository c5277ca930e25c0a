package ps

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction is one commit in the bundle history.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

func transactionFromCommit(commit *object.Commit) Transaction {
	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}

	return Transaction{
		Id:      commit.Hash.String(),
		When:    commit.Committer.When,
		Author:  author,
		Message: strings.TrimSpace(commit.Message),
	}
}

// LatestTransaction returns the newest commit, or a zero Transaction when the
// history is empty.
func (h *History) LatestTransaction() Transaction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latestTransaction()
}

func (h *History) latestTransaction() Transaction {
	headRef, err := h.repo.Head()
	if err != nil || headRef == nil {
		// No commits yet
		return Transaction{}
	}

	commit, err := h.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}
	return transactionFromCommit(commit)
}

// Transactions lists commits newest first.
func (h *History) Transactions() ([]Transaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.repo.Head(); err != nil {
		// No commits yet
		return nil, nil
	}

	cIter, err := h.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, transactionFromCommit(c))
		return nil
	})
	return transactions, err
}
