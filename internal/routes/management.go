package routes

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vibbin/vibbin/internal/dal"
	"github.com/vibbin/vibbin/internal/middleware"
	"github.com/vibbin/vibbin/internal/schemas/public"
)

// Status returns the requesting user's profile and their friends with presence
func (h *RouteHandler) Status(w http.ResponseWriter, req *http.Request) {
	user := middleware.GetUser(req)

	friends, err := dal.GetFriends(req.Context(), h.db, user.Id.String())
	if err != nil {
		logrus.Error(err)
		err = fmt.Errorf("error getting friends")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := public.StatusResponse{Self: dal.PublicUser(user), Friends: make([]public.Friend, 0, len(friends))}
	for _, f := range friends {
		friend := public.Friend{
			User:     dal.PublicUser(&f),
			IsOnline: h.presence.IsOnline(f.Id.String()),
			InCall:   len(h.relay.Calls().Involving(f.Id.String())) > 0,
		}
		if seen, ok := h.presence.LastSeen(f.Id.String()); ok {
			friend.LastSeen = &seen
		} else if f.LastSeen.Valid {
			friend.LastSeen = &f.LastSeen.Time
		}
		res.Friends = append(res.Friends, friend)
	}
	WriteJSON(w, &res)
}

// CallHistory returns the newest call log entries involving the requesting user
func (h *RouteHandler) CallHistory(w http.ResponseWriter, req *http.Request) {
	user := middleware.GetUser(req)

	history, err := dal.GetCallHistory(req.Context(), h.db, user.Id.String(), dal.HistoryLimit)
	if err != nil {
		logrus.Error(err)
		err = fmt.Errorf("error getting call history")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	WriteJSON(w, &history)
}
