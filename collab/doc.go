// Package collab produces one assistant reply drawing on several tutors.
//
// Participants are the agents mentioned in the message or, failing that, the
// best keyword matches. Four styles decide how they are asked:
//
//   - parallel: every participant answers the same prompt concurrently.
//   - sequential: each participant sees the answers given before it.
//   - debate: two rounds; in the second each participant reacts to the
//     others' first answers.
//   - random: a single participant chosen uniformly.
//
// A failing completion call never aborts the reply. The failed participant is
// represented by a placeholder contribution so synthesis always has one slot
// per agent.
package collab
