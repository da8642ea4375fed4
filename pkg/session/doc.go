/*
Package session orchestrates concurrent access to stored forms.

Writers to the same form are serialised by an in-process lock per form and,
when several API replicas share a store, by an optional distributed lock.
*/
package session
