// Package types defines the websocket envelope.
//
// Client -> Server
//
//	{type, reqId?, payload?}
//
//	room:create        {code?}                       -> {code, hostKey}
//	room:join          {code, name, memberId?}        -> {code, memberId, room, hostKey?}
//	room:leave         {}
//	room:state         {}                             -> {room}
//	host:assign        {targetId}                     -> {assignedTo}
//	host:reclaim       {hostKey}                      -> {isHost}
//	controller:claim   {hostKey}                      -> {controllerId}
//	controller:release {}
//	player:setHardcore {hardcore}                     -> {hardcore}
//	player:rename      {name}
//	submission:add     {id?, title, submitterName, detailHint?, detail?} -> {id}
//	submission:remove  {id}                           -> {removed}
//	submission:reorder {orderedIds}                   -> {index}
//	game:setPhase      {phase}                        -> {phase}
//	game:setIndex      {index}                        -> {index}
//	guess:submit       {submissionId, guessedSubmitterName, detailGuess?}
//	guess:lock         {submissionId}                 -> {submissionId, locked}
//	guess:lockAll      {}                             -> {locked}
//	guess:lockRoom     {}                             -> {locked}
//	reveal:add         {submissionId}
//	theme:set          {theme, hints?}
//	theme:hint         {}                             -> {hintsShown}
//	theme:reveal       {}                             -> {revealed}
//	theme:guess        {guess}                        -> {correct, locked}
//	score:compute      {}                             -> {scoreboard}
//	results:song       {submissionId}                 -> {results}
//	results:recap      {}                             -> {recap}
//	room:save          {}                             -> {saved, expiresAt}
//	room:unsave        {}                             -> {saved, expiresAt}
//
// Server -> Client
//
//	ack           {type:"ack", reqId, action, ack:{ok:true, ...} | {ok:false, error, details?}}
//	room:update   {version, room}   room is projected for the receiving member
//	score:update  {version, scores}
//	room:closed   {version}
package types
